package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/spf13/cobra"
)

// invalidDraftError makes the process exit non-zero once the field errors
// have been printed.
type invalidDraftError struct {
	count int
}

func (e *invalidDraftError) Error() string {
	return fmt.Sprintf("draft has %d invalid field(s)", e.count)
}

// drafts maps each --kind to a decoder plus the validator it runs.
var drafts = map[string]func(v *validation.Validator, raw []byte) (validation.Errors, error){
	"signup": run(func(v *validation.Validator, d validation.SignupDraft) validation.Errors { return v.Signup(d) }),
	"client": run(func(v *validation.Validator, d validation.ClientDraft) validation.Errors { return v.Client(d) }),
	"bank-account": run(func(v *validation.Validator, d validation.BankAccountDraft) validation.Errors {
		return v.BankAccount(d)
	}),
	"item":    run(func(v *validation.Validator, d validation.ItemDraft) validation.Errors { return v.Item(d) }),
	"invoice": run(func(v *validation.Validator, d validation.InvoiceDraft) validation.Errors { return v.Invoice(d) }),
	"cash":    run(func(v *validation.Validator, d validation.CashDraft) validation.Errors { return v.Cash(d) }),
	"check":   run(func(v *validation.Validator, d validation.CheckDraft) validation.Errors { return v.Check(d) }),
}

func run[D any](check func(*validation.Validator, D) validation.Errors) func(*validation.Validator, []byte) (validation.Errors, error) {
	return func(v *validation.Validator, raw []byte) (validation.Errors, error) {
		var d D
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode draft: %w", err)
		}
		return check(v, d), nil
	}
}

func kinds() string {
	names := make([]string, 0, len(drafts))
	for k := range drafts {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func newValidateCmd() *cobra.Command {
	var kind, locale string
	cmd := &cobra.Command{
		Use:   "validate [draft.json]",
		Short: "Validate a form draft and print its field errors",
		Long: `Validate a draft JSON file with the rules the forms apply before
submitting. The field error map is printed as JSON; an empty map means the
draft may be submitted. Reads stdin when no file or "-" is given.`,
		Example: `  bizdesk validate --kind client client.json
  cat invoice.json | bizdesk validate --kind invoice --locale fa`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			check, ok := drafts[kind]
			if !ok {
				return fmt.Errorf("unknown --kind %q (want %s)", kind, kinds())
			}

			raw, err := readDraft(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			errs, err := check(validation.For(i18n.Match(locale)), raw)
			if err != nil {
				return err
			}
			if errs == nil {
				errs = validation.Errors{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(errs); err != nil {
				return err
			}
			if !errs.Empty() {
				return &invalidDraftError{count: len(errs)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "draft kind: "+kinds())
	cmd.Flags().StringVar(&locale, "locale", "en", "message locale")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func readDraft(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}
