package validation

import (
	"bytes"
	"encoding/json"
)

// Drafts hold raw form state. Numbers and dates are kept as text and are
// only parsed once the draft validates.

// Number is the raw text of a numeric input. It decodes from a JSON string
// or a JSON number, so {"amount": 100} and {"amount": "100"} are the same
// draft; malformed text is left for the validators to report.
type Number string

// UnmarshalJSON keeps the text of a string or of any other literal.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		*n = Number(data)
	}
	return nil
}

// String returns the raw text.
func (n Number) String() string { return string(n) }

// SignupDraft is the account registration form.
type SignupDraft struct {
	UserName     string `json:"userName" validate:"notblank"`
	Password     string `json:"password" validate:"notblank" trim:"-"`
	Confirm      string `json:"confirm" validate:"notblank,eqfield=Password" trim:"-"`
	FullName     string `json:"fullname" validate:"notblank"`
	NationalCode string `json:"nationalCode" validate:"notblank"`
}

// ClientDraft is the create/edit form of a client.
type ClientDraft struct {
	FullName           string   `json:"fullname" validate:"notblank,max=200"`
	NationalCode       string   `json:"nationalCode" validate:"notblank,max=20"`
	Address            string   `json:"address" validate:"max=500"`
	IsJuridicalPerson  bool     `json:"isJuridicalPerson"`
	IsOwnerMember      bool     `json:"isOwnerMember"`
	Credits            Number   `json:"credits" validate:"omitempty,decimal"`
	InvoiceDescription string   `json:"invoiceDescription"`
	Tags               []string `json:"tags"`
}

// BankAccountDraft is the form of a client's bank account.
type BankAccountDraft struct {
	BankName      string `json:"bankName" validate:"notblank"`
	AccountNumber string `json:"accountNumber" validate:"notblank"`
	CardNumber    string `json:"cardNumber" validate:"omitempty,number"`
	IBAN          string `json:"iban" validate:"omitempty,alphanum"`
}

// ItemDraft is the form of a merchandise or service item.
type ItemDraft struct {
	Kind        string   `json:"type" validate:"notblank,oneof=Merchandise Service"`
	Name        string   `json:"name" validate:"notblank,max=200"`
	Group       string   `json:"group" validate:"notblank"`
	Subgroup    string   `json:"subgroup"`
	Unit        string   `json:"unit" validate:"notblank"`
	Price       Number   `json:"price" validate:"notblank,number_gte0"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// InvoiceItemDraft is one editable invoice line.
type InvoiceItemDraft struct {
	Name        string `json:"name" validate:"notblank"`
	Quantity    Number `json:"quantity" validate:"notblank,number_gte0"`
	Unit        string `json:"unit"`
	Price       Number `json:"price" validate:"notblank,number_gte0"`
	Description string `json:"description"`
}

// InvoiceDraft is the invoice editor. fromClient and toClient may be equal.
type InvoiceDraft struct {
	Kind        string             `json:"type" validate:"notblank,oneof=Invoice PreInvoice"`
	FromClient  string             `json:"fromClient" validate:"notblank"`
	ToClient    string             `json:"toClient" validate:"notblank"`
	Tax         Number             `json:"tax" validate:"omitempty,percent"`
	Discount    Number             `json:"discount" validate:"omitempty,percent"`
	Date        string             `json:"date" validate:"notblank,date"`
	Description string             `json:"description"`
	Items       []InvoiceItemDraft `json:"items" validate:"min=1,dive"`
}

// TransactionDraft holds the fields shared by cash and check forms.
type TransactionDraft struct {
	FromClient  string   `json:"fromClient" validate:"notblank"`
	ToClient    string   `json:"toClient" validate:"notblank,nefield=FromClient"`
	Amount      Number   `json:"amount" validate:"notblank,number_gt0"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CashDraft is the cash transaction form.
type CashDraft struct {
	TransactionDraft
}

// CheckDraft is the check transaction form.
type CheckDraft struct {
	TransactionDraft
	CheckNumber string `json:"checkNumber" validate:"notblank"`
	Bank        string `json:"bank" validate:"notblank"`
	ReceiveDate string `json:"receiveDate" validate:"omitempty,date"`
	DueDate     string `json:"dueDate" validate:"omitempty,date"`
	State       string `json:"state" validate:"omitempty,oneof=None Passed Bounced Expended Cashed"`
}
