package store

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/cache"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBackend() (Backend, Caches) {
	b := Backend{
		Clients:      storetest.NewClients(domain.Client{ID: "c1"}),
		BankAccounts: storetest.NewBankAccounts(),
		Items:        storetest.NewItems(domain.Item{ID: "i1"}),
		Invoices:     storetest.NewInvoices(domain.Invoice{ID: "inv1"}, domain.Invoice{ID: "inv0", Archived: true}),
		Transactions: storetest.NewTransactions(domain.Transaction{ID: "t1"}, domain.Transaction{ID: "t2"}),
	}
	c := Caches{
		Clients:      cache.New[domain.Client](time.Minute),
		BankAccounts: cache.New[domain.BankAccount](time.Minute),
		Items:        cache.New[domain.Item](time.Minute),
		Invoices:     cache.New[domain.Invoice](time.Minute),
		Transactions: cache.New[domain.Transaction](time.Minute),
	}
	return b, c
}

func TestWorkspace_Refresh(t *testing.T) {
	b, c := testBackend()
	w := NewWorkspace("b1", b, c, observability.NewMetrics(), zap.NewNop())

	require.NoError(t, w.Refresh(context.Background()))
	assert.Equal(t, []string{"c1"}, ids(w.Clients.Snapshot().Items))
	assert.Equal(t, []string{"i1"}, ids(w.Items.Snapshot().Items))
	assert.Equal(t, []string{"inv1"}, ids(w.Invoices.Snapshot().Items))
	assert.Len(t, w.Transactions.Snapshot().Items, 2)
	assert.Equal(t, StateIdle, w.BankAccounts.Snapshot().State)
}

func TestRegistry_OneWorkspacePerBusiness(t *testing.T) {
	b, c := testBackend()
	r := NewRegistry(b, c, observability.NewMetrics(), zap.NewNop())

	w1 := r.Workspace("b1")
	assert.Same(t, w1, r.Workspace("b1"))
	assert.NotSame(t, w1, r.Workspace("b2"))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, domain.Scope{BusinessID: "b2"}, r.Workspace("b2").Scope())
}
