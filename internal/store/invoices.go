package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/port"

	"go.uber.org/zap"
)

// InvoiceCollection is the invoice list plus the archive transition.
// Archived invoices are read-only: updates and a second archive are
// refused with *domain.ErrReadOnly before any network write.
type InvoiceCollection struct {
	*Collection[domain.Invoice]
	res port.InvoiceResource
}

// NewInvoiceCollection creates the invoice collection. Its default view
// excludes archived invoices.
func NewInvoiceCollection(res port.InvoiceResource, detail port.Cache[domain.Invoice], metrics *observability.Metrics, logger *zap.Logger) *InvoiceCollection {
	c := NewCollection[domain.Invoice]("invoices", res, detail, metrics, logger, WithDefaultFilter(domain.ActiveInvoices()))
	ic := &InvoiceCollection{Collection: c, res: res}
	c.guard = ic.refuseArchived
	return ic
}

// Archive moves id into the archived state and refreshes the list.
// Once the server accepts the archive the write counts as persisted: a
// failed re-read of the invoice is returned as a refresh error next to
// the archived entity.
func (ic *InvoiceCollection) Archive(ctx context.Context, scope domain.Scope, id string) (MutationResult[domain.Invoice], error) {
	result, err := ic.mutate(ctx, "archive", scope, id, func(ctx context.Context) (domain.Invoice, error) {
		if err := ic.res.Archive(ctx, scope, id); err != nil {
			return domain.Invoice{}, err
		}
		inv, ok := ic.local(scope, id)
		if !ok {
			inv = domain.Invoice{ID: id}
		}
		inv.Archived = true
		return inv, nil
	})
	if result.Policy != RefreshRequery {
		return result, err
	}

	inv, gerr := ic.Get(ctx, scope, id)
	if gerr != nil {
		ic.logger.Warn("store: re-read after archive failed", zap.String("invoice_id", id), zap.Error(gerr))
		if err == nil {
			err = fmt.Errorf("refresh after archive: %w", gerr)
		}
		return result, err
	}
	result.Entity = inv
	return result, err
}

// Upload attaches a document to an invoice. It does not touch the list.
func (ic *InvoiceCollection) Upload(ctx context.Context, scope domain.Scope, id, filename string, body io.Reader) (string, error) {
	url, err := ic.res.Upload(ctx, scope, id, filename, body)
	if err != nil {
		return "", fmt.Errorf("upload invoice %s: %w", id, err)
	}
	ic.detail.Delete(detailKey(scope, id))
	return url, nil
}

// refuseArchived looks the invoice up locally first, then via Get.
func (ic *InvoiceCollection) refuseArchived(ctx context.Context, scope domain.Scope, id string) error {
	if inv, ok := ic.local(scope, id); ok {
		if inv.Archived {
			return &domain.ErrReadOnly{Resource: "invoice", ID: id}
		}
		return nil
	}
	inv, err := ic.Get(ctx, scope, id)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return err
		}
		// Unknown state: let the server decide.
		ic.logger.Warn("store: archive check failed", zap.String("invoice_id", id), zap.Error(err))
		return nil
	}
	if inv.Archived {
		return &domain.ErrReadOnly{Resource: "invoice", ID: id}
	}
	return nil
}

func (ic *InvoiceCollection) local(scope domain.Scope, id string) (domain.Invoice, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.scope != scope {
		return domain.Invoice{}, false
	}
	for _, inv := range ic.items {
		if inv.ID == id {
			return inv, true
		}
	}
	return domain.Invoice{}, false
}
