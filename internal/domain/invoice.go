package domain

// InvoiceKind distinguishes issued invoices from quotes.
type InvoiceKind string

const (
	InvoiceKindInvoice    InvoiceKind = "Invoice"
	InvoiceKindPreInvoice InvoiceKind = "PreInvoice"
)

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// Invoice is a bill between two clients. Once Archived it is read-only.
type Invoice struct {
	ID              string        `json:"id"`
	Kind            InvoiceKind   `json:"type"`
	FromClient      string        `json:"fromClient"`
	ToClient        string        `json:"toClient"`
	TaxPercent      float64       `json:"tax"`
	DiscountPercent float64       `json:"discount"`
	Date            string        `json:"date"`
	Description     string        `json:"description,omitempty"`
	Items           []InvoiceItem `json:"items"`
	Archived        bool          `json:"archived"`
	Total           float64       `json:"total,omitempty"`
	DocumentURL     string        `json:"documentUrl,omitempty"`
}

func (i Invoice) EntityID() string { return i.ID }

// PreviewTotal is the client-side estimate shown while editing: line sum,
// minus discount, plus tax on the discounted amount. The server's Total
// is authoritative once the list has been refreshed.
func (i Invoice) PreviewTotal() float64 {
	var subtotal float64
	for _, it := range i.Items {
		subtotal += it.Quantity * it.Price
	}
	discounted := subtotal * (1 - i.DiscountPercent/100)
	return discounted * (1 + i.TaxPercent/100)
}
