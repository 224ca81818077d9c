// Package service runs the form flows: validate a draft, convert it and
// hand it to the store. A draft that fails validation never reaches the
// network.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/forms")

// Forms is the entry point of every create/edit/delete screen.
type Forms struct {
	registry *store.Registry
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewForms creates the form service.
func NewForms(registry *store.Registry, metrics *observability.Metrics, logger *zap.Logger) *Forms {
	return &Forms{registry: registry, metrics: metrics, logger: logger}
}

// Workspace exposes the collections of a business (list and detail views).
func (f *Forms) Workspace(businessID string) *store.Workspace {
	return f.registry.Workspace(businessID)
}

func (f *Forms) validator(ctx context.Context) *validation.Validator {
	return validation.For(i18n.FromContext(ctx))
}

// submit creates when id is empty and updates otherwise.
func submit[T domain.Entity](ctx context.Context, c *store.Collection[T], scope domain.Scope, id string, entity T) (store.MutationResult[T], error) {
	if id == "" {
		return c.Create(ctx, scope, entity)
	}
	return c.Update(ctx, scope, id, entity)
}

func (f *Forms) observe(form string, start time.Time) {
	f.metrics.RecordRequestDuration("form."+form, time.Since(start))
}

// SubmitSignup validates the registration form. Account creation itself
// belongs to the identity provider; a nil error means the form may be sent.
func (f *Forms) SubmitSignup(ctx context.Context, d validation.SignupDraft) error {
	return f.validator(ctx).Signup(d).Err()
}

// SubmitClient creates or edits a client.
func (f *Forms) SubmitClient(ctx context.Context, scope domain.Scope, id string, d validation.ClientDraft) (store.MutationResult[domain.Client], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitClient")
	defer span.End()
	defer f.observe("client", time.Now())

	if err := f.validator(ctx).Client(d).Err(); err != nil {
		return store.MutationResult[domain.Client]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).Clients, scope, id, clientFromDraft(d))
}

// SubmitBankAccount creates or edits a bank account; scope.ParentID is
// the owning client.
func (f *Forms) SubmitBankAccount(ctx context.Context, scope domain.Scope, id string, d validation.BankAccountDraft) (store.MutationResult[domain.BankAccount], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitBankAccount")
	defer span.End()
	defer f.observe("bank_account", time.Now())

	if scope.ParentID == "" {
		return store.MutationResult[domain.BankAccount]{}, &domain.ErrValidation{Field: "clientId", Message: "bank accounts belong to a client"}
	}
	if err := f.validator(ctx).BankAccount(d).Err(); err != nil {
		return store.MutationResult[domain.BankAccount]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).BankAccounts, scope, id, bankAccountFromDraft(scope.ParentID, d))
}

// SubmitItem creates or edits an item.
func (f *Forms) SubmitItem(ctx context.Context, scope domain.Scope, id string, d validation.ItemDraft) (store.MutationResult[domain.Item], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitItem")
	defer span.End()
	defer f.observe("item", time.Now())

	if err := f.validator(ctx).Item(d).Err(); err != nil {
		return store.MutationResult[domain.Item]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).Items, scope, id, itemFromDraft(d))
}

// SubmitInvoice creates or edits an invoice. Archived invoices are refused
// by the store with *domain.ErrReadOnly.
func (f *Forms) SubmitInvoice(ctx context.Context, scope domain.Scope, id string, d validation.InvoiceDraft) (store.MutationResult[domain.Invoice], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitInvoice")
	defer span.End()
	defer f.observe("invoice", time.Now())

	if err := f.validator(ctx).Invoice(d).Err(); err != nil {
		return store.MutationResult[domain.Invoice]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).Invoices.Collection, scope, id, invoiceFromDraft(d))
}

// SubmitCash creates or edits a cash transaction.
func (f *Forms) SubmitCash(ctx context.Context, scope domain.Scope, id string, d validation.CashDraft) (store.MutationResult[domain.Transaction], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitCash")
	defer span.End()
	defer f.observe("cash", time.Now())

	if err := f.validator(ctx).Cash(d).Err(); err != nil {
		return store.MutationResult[domain.Transaction]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).Transactions, scope, id, cashFromDraft(d))
}

// SubmitCheck creates or edits a check transaction.
func (f *Forms) SubmitCheck(ctx context.Context, scope domain.Scope, id string, d validation.CheckDraft) (store.MutationResult[domain.Transaction], error) {
	ctx, span := tracer.Start(ctx, "Forms.SubmitCheck")
	defer span.End()
	defer f.observe("check", time.Now())

	if err := f.validator(ctx).Check(d).Err(); err != nil {
		return store.MutationResult[domain.Transaction]{}, err
	}
	return submit(ctx, f.Workspace(scope.BusinessID).Transactions, scope, id, checkFromDraft(d))
}

// ArchiveInvoice moves an invoice into its read-only state.
func (f *Forms) ArchiveInvoice(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.Invoice], error) {
	ctx, span := tracer.Start(ctx, "Forms.ArchiveInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	return f.Workspace(scope.BusinessID).Invoices.Archive(ctx, scope, id)
}

// CreateInvoiceWithAttachment creates an invoice and uploads its document.
// The two calls are not atomic: when the upload fails the invoice stays
// created and the returned error names it, so the caller can retry the
// upload alone.
func (f *Forms) CreateInvoiceWithAttachment(ctx context.Context, scope domain.Scope, d validation.InvoiceDraft, filename string, body io.Reader) (domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Forms.CreateInvoiceWithAttachment")
	defer span.End()

	result, err := f.SubmitInvoice(ctx, scope, "", d)
	if err != nil && result.Entity.ID == "" {
		return domain.Invoice{}, err
	}
	inv := result.Entity
	if inv.ID == "" {
		return inv, &domain.ErrExternalService{Service: "invoices", Err: errors.New("create returned no invoice id")}
	}

	url, upErr := f.Workspace(scope.BusinessID).Invoices.Upload(ctx, scope, inv.ID, filename, body)
	if upErr != nil {
		f.logger.Warn("invoice created without attachment",
			zap.String("business_id", scope.BusinessID),
			zap.String("invoice_id", inv.ID),
			zap.Error(upErr),
		)
		return inv, fmt.Errorf("invoice %s created, attachment failed: %w", inv.ID, upErr)
	}
	inv.DocumentURL = url
	return inv, err
}

// UploadInvoiceDocument attaches a document to an existing invoice.
func (f *Forms) UploadInvoiceDocument(ctx context.Context, scope domain.Scope, id, filename string, body io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "Forms.UploadInvoiceDocument")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	return f.Workspace(scope.BusinessID).Invoices.Upload(ctx, scope, id, filename, body)
}

// Deletes. Each is idempotent: deleting an id that is already gone succeeds.

func (f *Forms) DeleteClient(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.Client], error) {
	return f.Workspace(scope.BusinessID).Clients.Remove(ctx, scope, id)
}

func (f *Forms) DeleteBankAccount(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.BankAccount], error) {
	return f.Workspace(scope.BusinessID).BankAccounts.Remove(ctx, scope, id)
}

func (f *Forms) DeleteItem(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.Item], error) {
	return f.Workspace(scope.BusinessID).Items.Remove(ctx, scope, id)
}

func (f *Forms) DeleteInvoice(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.Invoice], error) {
	return f.Workspace(scope.BusinessID).Invoices.Remove(ctx, scope, id)
}

func (f *Forms) DeleteTransaction(ctx context.Context, scope domain.Scope, id string) (store.MutationResult[domain.Transaction], error) {
	return f.Workspace(scope.BusinessID).Transactions.Remove(ctx, scope, id)
}

// List reads a collection for a list view. It fetches when the collection
// holds another scope or filter, or when refresh is set. The returned
// snapshot always belongs to scope and filter: a collection shared with
// another view never leaks that view's items. A read superseded by a
// request for another view is retried once.
func List[T domain.Entity](ctx context.Context, c *store.Collection[T], scope domain.Scope, filter domain.Filter, refresh bool) (store.Snapshot[T], error) {
	if !refresh && c.Matches(scope, filter) {
		return c.Snapshot(), nil
	}
	snap, err := c.FetchAll(ctx, scope, filter)
	var sup *domain.ErrSuperseded
	if errors.As(err, &sup) {
		if cur := c.Snapshot(); cur.State == store.StateLoaded && cur.Shows(scope, filter) {
			return cur, nil
		}
		snap, err = c.FetchAll(ctx, scope, filter)
	}
	if err != nil && !snap.Shows(scope, filter) {
		return store.Snapshot[T]{
			State:  store.StateError,
			Items:  []T{},
			Err:    err,
			Scope:  scope,
			Filter: filter,
		}, err
	}
	return snap, err
}
