package store

import (
	"testing"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/cache"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store/storetest"

	"go.uber.org/zap"
)

func newClientCollection(t *testing.T, res *storetest.Resource[domain.Client]) *Collection[domain.Client] {
	t.Helper()
	detail := cache.New[domain.Client](time.Minute)
	t.Cleanup(detail.Close)
	return NewCollection[domain.Client]("clients", res, detail, observability.NewMetrics(), zap.NewNop())
}

func newInvoiceCollection(t *testing.T, res *storetest.Invoices) *InvoiceCollection {
	t.Helper()
	detail := cache.New[domain.Invoice](time.Minute)
	t.Cleanup(detail.Close)
	return NewInvoiceCollection(res, detail, observability.NewMetrics(), zap.NewNop())
}

func ids[T domain.Entity](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.EntityID())
	}
	return out
}
