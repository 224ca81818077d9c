package domain

// ============================================================
// Clients & Bank Accounts
// ============================================================

// Client is a counterparty of the business (customer, supplier or owner).
type Client struct {
	ID                 string   `json:"id"`
	FullName           string   `json:"fullname"`
	NationalCode       string   `json:"nationalCode"`
	Address            string   `json:"address,omitempty"`
	IsJuridicalPerson  bool     `json:"isJuridicalPerson"`
	IsOwnerMember      bool     `json:"isOwnerMember"`
	Credits            float64  `json:"credits"`
	InvoiceDescription string   `json:"invoiceDescription,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

func (c Client) EntityID() string { return c.ID }

// BankAccount belongs to exactly one client.
type BankAccount struct {
	ID            string `json:"id"`
	ClientID      string `json:"clientId"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	CardNumber    string `json:"cardNumber,omitempty"`
	IBAN          string `json:"iban,omitempty"`
}

func (a BankAccount) EntityID() string { return a.ID }
