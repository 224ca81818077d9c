// Package validation turns draft form state into a field → message map.
// Every validator is pure and synchronous: an empty map means the draft
// may be submitted, anything else blocks submission and names the inputs
// to highlight.
package validation

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Errors maps a draft field key (its JSON name, or items[i].name for
// invoice lines) to a localized message.
type Errors map[string]string

// Empty reports whether the draft passed.
func (e Errors) Empty() bool { return len(e) == 0 }

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Err converts a non-empty map into *domain.ErrFieldErrors.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return &domain.ErrFieldErrors{Errors: e}
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must(v.RegisterValidation("notblank", validators.NotBlank))
	must(v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, ok := parseNumber(fl.Field().String())
		return ok
	}))
	must(v.RegisterValidation("number_gte0", func(fl validator.FieldLevel) bool {
		n, ok := parseNumber(fl.Field().String())
		return ok && n >= 0
	}))
	must(v.RegisterValidation("number_gt0", func(fl validator.FieldLevel) bool {
		n, ok := parseNumber(fl.Field().String())
		return ok && n > 0
	}))
	must(v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
		n, ok := parseNumber(fl.Field().String())
		return ok && n >= 0 && n <= 100
	}))
	must(v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(domain.DateLayout, fl.Field().String())
		return err == nil
	}))
	v.RegisterStructValidation(checkDates, CheckDraft{})
	return v
}

func must(err error) {
	if err != nil {
		panic("validation: " + err.Error())
	}
}

// parseNumber accepts only finite decimals; NaN and ±Inf are rejected.
func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParseNumber is the parser used to turn a validated draft field into a value.
func ParseNumber(s string) (float64, bool) {
	return parseNumber(s)
}

// checkDates enforces dueDate >= receiveDate when both dates are present and valid.
func checkDates(sl validator.StructLevel) {
	d := sl.Current().Interface().(CheckDraft)
	if d.ReceiveDate == "" || d.DueDate == "" {
		return
	}
	recv, err1 := time.Parse(domain.DateLayout, d.ReceiveDate)
	due, err2 := time.Parse(domain.DateLayout, d.DueDate)
	if err1 != nil || err2 != nil {
		return
	}
	if due.Before(recv) {
		sl.ReportError(d.DueDate, "dueDate", "DueDate", "due_after_receive", "")
	}
}

// Validator renders messages in one locale.
type Validator struct {
	printer *message.Printer
}

var (
	cacheMu  sync.Mutex
	byLocale = map[language.Tag]*Validator{}
)

// For returns the validator for tag, building it on first use.
func For(tag language.Tag) *Validator {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if v, ok := byLocale[tag]; ok {
		return v
	}
	v := &Validator{printer: i18n.Printer(tag)}
	byLocale[tag] = v
	return v
}

// Default is the validator of the default locale, as set by i18n.SetDefault.
func Default() *Validator {
	return For(i18n.Default())
}

func (v *Validator) Signup(d SignupDraft) Errors           { return v.run(&d) }
func (v *Validator) Client(d ClientDraft) Errors           { return v.run(&d) }
func (v *Validator) BankAccount(d BankAccountDraft) Errors { return v.run(&d) }
func (v *Validator) Item(d ItemDraft) Errors               { return v.run(&d) }
func (v *Validator) Invoice(d InvoiceDraft) Errors         { return v.run(&d) }
func (v *Validator) Cash(d CashDraft) Errors               { return v.run(&d) }
func (v *Validator) Check(d CheckDraft) Errors             { return v.run(&d) }

// Package-level shorthands validate in the default locale.

func ValidateSignup(d SignupDraft) Errors           { return Default().Signup(d) }
func ValidateClient(d ClientDraft) Errors           { return Default().Client(d) }
func ValidateBankAccount(d BankAccountDraft) Errors { return Default().BankAccount(d) }
func ValidateItem(d ItemDraft) Errors               { return Default().Item(d) }
func ValidateInvoice(d InvoiceDraft) Errors         { return Default().Invoice(d) }
func ValidateCash(d CashDraft) Errors               { return Default().Cash(d) }
func ValidateCheck(d CheckDraft) Errors             { return Default().Check(d) }

// run trims every string of the draft (a blank field is an absent field),
// validates it and maps each failure to one message per field.
func (v *Validator) run(draft any) Errors {
	trimStrings(reflect.ValueOf(draft).Elem())

	errs := Errors{}
	err := validate.Struct(draft)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["_"] = v.printer.Sprintf(i18n.MsgInvalid)
		return errs
	}
	for _, fe := range fieldErrs {
		key := fieldKey(fe.Namespace())
		if _, seen := errs[key]; seen {
			continue
		}
		errs[key] = v.message(key, fe)
	}
	return errs
}

func (v *Validator) message(key string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return v.printer.Sprintf(i18n.MsgRequired)
	case "eqfield":
		return v.printer.Sprintf(i18n.MsgPasswordMatch)
	case "nefield":
		return v.printer.Sprintf(i18n.MsgSameClient)
	case "due_after_receive":
		return v.printer.Sprintf(i18n.MsgDueBeforeRecv)
	case "number_gte0":
		return v.printer.Sprintf(i18n.MsgNumberGTE0)
	case "decimal", "number", "numeric":
		return v.printer.Sprintf(i18n.MsgNumber)
	case "number_gt0":
		return v.printer.Sprintf(i18n.MsgNumberGT0)
	case "percent":
		return v.printer.Sprintf(i18n.MsgPercent)
	case "date":
		return v.printer.Sprintf(i18n.MsgDate)
	case "oneof":
		return v.printer.Sprintf(i18n.MsgOneOf, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if key == "items" {
			return v.printer.Sprintf(i18n.MsgItemsRequired)
		}
	case "max":
		return v.printer.Sprintf(i18n.MsgTooLong)
	}
	return v.printer.Sprintf(i18n.MsgInvalid)
}

// fieldKey drops the root type and embedded struct names from a
// validator namespace: "CheckDraft.TransactionDraft.toClient" becomes
// "toClient", "InvoiceDraft.items[0].name" becomes "items[0].name".
func fieldKey(ns string) string {
	parts := strings.Split(ns, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts[1:] {
		if p == "" || (p[0] >= 'A' && p[0] <= 'Z') {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

// trimStrings trims every string reachable from v, except fields tagged
// trim:"-" (secrets, whose whitespace is significant).
func trimStrings(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).Tag.Get("trim") == "-" {
				continue
			}
			trimStrings(v.Field(i))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimStrings(v.Index(i))
		}
	}
}
