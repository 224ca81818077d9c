package service

import (
	"strings"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"
)

// Converters run only on validated drafts, so number parsing cannot fail
// except for optional fields left blank, which become zero.

func number(s validation.Number) float64 {
	v, _ := validation.ParseNumber(strings.TrimSpace(s.String()))
	return v
}

func tags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clientFromDraft(d validation.ClientDraft) domain.Client {
	return domain.Client{
		FullName:           strings.TrimSpace(d.FullName),
		NationalCode:       strings.TrimSpace(d.NationalCode),
		Address:            strings.TrimSpace(d.Address),
		IsJuridicalPerson:  d.IsJuridicalPerson,
		IsOwnerMember:      d.IsOwnerMember,
		Credits:            number(d.Credits),
		InvoiceDescription: strings.TrimSpace(d.InvoiceDescription),
		Tags:               tags(d.Tags),
	}
}

func bankAccountFromDraft(clientID string, d validation.BankAccountDraft) domain.BankAccount {
	return domain.BankAccount{
		ClientID:      clientID,
		BankName:      strings.TrimSpace(d.BankName),
		AccountNumber: strings.TrimSpace(d.AccountNumber),
		CardNumber:    strings.TrimSpace(d.CardNumber),
		IBAN:          strings.ToUpper(strings.TrimSpace(d.IBAN)),
	}
}

func itemFromDraft(d validation.ItemDraft) domain.Item {
	return domain.Item{
		Kind:        domain.ItemKind(strings.TrimSpace(d.Kind)),
		Name:        strings.TrimSpace(d.Name),
		Group:       strings.TrimSpace(d.Group),
		Subgroup:    strings.TrimSpace(d.Subgroup),
		Unit:        strings.TrimSpace(d.Unit),
		UnitPrice:   number(d.Price),
		Tags:        tags(d.Tags),
		Description: strings.TrimSpace(d.Description),
	}
}

func invoiceFromDraft(d validation.InvoiceDraft) domain.Invoice {
	inv := domain.Invoice{
		Kind:            domain.InvoiceKind(strings.TrimSpace(d.Kind)),
		FromClient:      strings.TrimSpace(d.FromClient),
		ToClient:        strings.TrimSpace(d.ToClient),
		TaxPercent:      number(d.Tax),
		DiscountPercent: number(d.Discount),
		Date:            strings.TrimSpace(d.Date),
		Description:     strings.TrimSpace(d.Description),
		Items:           make([]domain.InvoiceItem, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			Name:        strings.TrimSpace(it.Name),
			Quantity:    number(it.Quantity),
			Unit:        strings.TrimSpace(it.Unit),
			Price:       number(it.Price),
			Description: strings.TrimSpace(it.Description),
		})
	}
	return inv
}

func transactionFromDraft(kind domain.TransactionKind, d validation.TransactionDraft) domain.Transaction {
	return domain.Transaction{
		Kind:        kind,
		FromClient:  strings.TrimSpace(d.FromClient),
		ToClient:    strings.TrimSpace(d.ToClient),
		Amount:      number(d.Amount),
		Description: strings.TrimSpace(d.Description),
		Tags:        tags(d.Tags),
	}
}

func cashFromDraft(d validation.CashDraft) domain.Transaction {
	return transactionFromDraft(domain.TransactionCash, d.TransactionDraft)
}

// checkFromDraft leaves an unset state empty; the API stores it as None.
func checkFromDraft(d validation.CheckDraft) domain.Transaction {
	tx := transactionFromDraft(domain.TransactionCheck, d.TransactionDraft)
	tx.CheckNumber = strings.TrimSpace(d.CheckNumber)
	tx.Bank = strings.TrimSpace(d.Bank)
	tx.ReceiveDate = strings.TrimSpace(d.ReceiveDate)
	tx.DueDate = strings.TrimSpace(d.DueDate)
	tx.State = domain.CheckState(strings.TrimSpace(d.State))
	return tx
}
