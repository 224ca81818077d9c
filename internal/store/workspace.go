package store

import (
	"context"
	"sync"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the set of upstream endpoints the collections write through.
type Backend struct {
	Clients      port.Resource[domain.Client]
	BankAccounts port.Resource[domain.BankAccount]
	Items        port.Resource[domain.Item]
	Invoices     port.InvoiceResource
	Transactions port.Resource[domain.Transaction]
}

// Caches holds one detail cache per entity type. Keys embed the scope, so
// the caches are shared by every workspace.
type Caches struct {
	Clients      port.Cache[domain.Client]
	BankAccounts port.Cache[domain.BankAccount]
	Items        port.Cache[domain.Item]
	Invoices     port.Cache[domain.Invoice]
	Transactions port.Cache[domain.Transaction]
}

// Workspace is the state of one business.
type Workspace struct {
	BusinessID   string
	Clients      *Collection[domain.Client]
	BankAccounts *Collection[domain.BankAccount]
	Items        *Collection[domain.Item]
	Invoices     *InvoiceCollection
	Transactions *Collection[domain.Transaction]
}

// NewWorkspace builds the five collections of a business.
func NewWorkspace(businessID string, b Backend, c Caches, metrics *observability.Metrics, logger *zap.Logger) *Workspace {
	logger = logger.With(zap.String("business_id", businessID))
	return &Workspace{
		BusinessID:   businessID,
		Clients:      NewCollection[domain.Client]("clients", b.Clients, c.Clients, metrics, logger),
		BankAccounts: NewCollection[domain.BankAccount]("bank_accounts", b.BankAccounts, c.BankAccounts, metrics, logger),
		Items:        NewCollection[domain.Item]("items", b.Items, c.Items, metrics, logger),
		Invoices:     NewInvoiceCollection(b.Invoices, c.Invoices, metrics, logger),
		Transactions: NewCollection[domain.Transaction]("transactions", b.Transactions, c.Transactions, metrics, logger),
	}
}

// Scope is the business-level scope.
func (w *Workspace) Scope() domain.Scope {
	return domain.Scope{BusinessID: w.BusinessID}
}

// Refresh loads the top-level collections concurrently. Bank accounts are
// per client and are fetched on demand.
func (w *Workspace) Refresh(ctx context.Context) error {
	scope := w.Scope()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := w.Clients.FetchAll(gCtx, scope, domain.Filter{})
		return err
	})
	g.Go(func() error {
		_, err := w.Items.FetchAll(gCtx, scope, domain.Filter{})
		return err
	})
	g.Go(func() error {
		_, err := w.Invoices.FetchAll(gCtx, scope, domain.ActiveInvoices())
		return err
	})
	g.Go(func() error {
		_, err := w.Transactions.FetchAll(gCtx, scope, domain.Filter{})
		return err
	})
	return g.Wait()
}

// Registry hands out one Workspace per business, created on first use.
type Registry struct {
	backend Backend
	caches  Caches
	metrics *observability.Metrics
	logger  *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry creates an empty registry.
func NewRegistry(b Backend, c Caches, metrics *observability.Metrics, logger *zap.Logger) *Registry {
	return &Registry{
		backend:    b,
		caches:     c,
		metrics:    metrics,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// Workspace returns the workspace of businessID.
func (r *Registry) Workspace(businessID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[businessID]
	if !ok {
		w = NewWorkspace(businessID, r.backend, r.caches, r.metrics, r.logger)
		r.workspaces[businessID] = w
	}
	return w
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
