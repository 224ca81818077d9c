// Package storetest provides in-memory upstream resources for tests.
package storetest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
)

// Resource is an in-memory port.Resource. Ids are assigned as id-1, id-2...
type Resource[T domain.Entity] struct {
	mu    sync.Mutex
	items []T
	seq   int
	setID func(T, string) T
	keep  func(T, domain.Scope, domain.Filter) bool

	listCalls  int
	getCalls   int
	writeCalls int
	onList     func(n int)
	onScope    func(scope domain.Scope)
	onWrite    func()
	listErr    error
	getErr     error
	writeErr   error
	omitIDs    bool
}

// NewResource creates a resource holding items.
func NewResource[T domain.Entity](setID func(T, string) T, items ...T) *Resource[T] {
	return &Resource[T]{items: items, setID: setID}
}

// OnList runs hook before each List answers; n is the 1-based call number.
func (r *Resource[T]) OnList(hook func(n int)) {
	r.mu.Lock()
	r.onList = hook
	r.mu.Unlock()
}

// OnListScope runs hook with the requested scope before each List answers.
func (r *Resource[T]) OnListScope(hook func(scope domain.Scope)) {
	r.mu.Lock()
	r.onScope = hook
	r.mu.Unlock()
}

// OnWrite runs hook at the start of every create, update and delete.
func (r *Resource[T]) OnWrite(hook func()) {
	r.mu.Lock()
	r.onWrite = hook
	r.mu.Unlock()
}

// FailList makes List return err (nil restores it).
func (r *Resource[T]) FailList(err error) {
	r.mu.Lock()
	r.listErr = err
	r.mu.Unlock()
}

// FailGets makes Get return err (nil restores it).
func (r *Resource[T]) FailGets(err error) {
	r.mu.Lock()
	r.getErr = err
	r.mu.Unlock()
}

// FailWrites makes every write return err (nil restores them).
func (r *Resource[T]) FailWrites(err error) {
	r.mu.Lock()
	r.writeErr = err
	r.mu.Unlock()
}

// OmitCreatedIDs makes Create store the entity but answer without its id.
func (r *Resource[T]) OmitCreatedIDs() {
	r.mu.Lock()
	r.omitIDs = true
	r.mu.Unlock()
}

// Replace swaps the server-side contents.
func (r *Resource[T]) Replace(items ...T) {
	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
}

// Items returns a copy of the server-side contents.
func (r *Resource[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Calls reports how many List, Get and write calls were made.
func (r *Resource[T]) Calls() (list, get, write int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls, r.getCalls, r.writeCalls
}

func (r *Resource[T]) List(ctx context.Context, scope domain.Scope, filter domain.Filter) (*domain.Page[T], error) {
	r.mu.Lock()
	r.listCalls++
	n, hook, scoped := r.listCalls, r.onList, r.onScope
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if scoped != nil {
		scoped(scope)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := []T{}
	for _, it := range r.items {
		if r.keep == nil || r.keep(it, scope, filter) {
			out = append(out, it)
		}
	}
	return &domain.Page[T]{Items: out, Total: len(out)}, nil
}

func (r *Resource[T]) Get(ctx context.Context, scope domain.Scope, id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	var zero T
	if r.getErr != nil {
		return zero, r.getErr
	}
	for _, it := range r.items {
		if it.EntityID() == id {
			return it, nil
		}
	}
	return zero, &domain.ErrNotFound{Resource: "fake", ID: id}
}

func (r *Resource[T]) Create(ctx context.Context, scope domain.Scope, entity T) (T, error) {
	if err := r.beginWrite(); err != nil {
		var zero T
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entity = r.setID(entity, fmt.Sprintf("id-%d", r.seq))
	r.items = append(r.items, entity)
	if r.omitIDs {
		return r.setID(entity, ""), nil
	}
	return entity, nil
}

func (r *Resource[T]) Update(ctx context.Context, scope domain.Scope, id string, entity T) (T, error) {
	var zero T
	if err := r.beginWrite(); err != nil {
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entity = r.setID(entity, id)
	for i, it := range r.items {
		if it.EntityID() == id {
			r.items[i] = entity
			return entity, nil
		}
	}
	return zero, &domain.ErrNotFound{Resource: "fake", ID: id}
}

func (r *Resource[T]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	if err := r.beginWrite(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if it.EntityID() == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "fake", ID: id}
}

func (r *Resource[T]) beginWrite() error {
	r.mu.Lock()
	r.writeCalls++
	hook := r.onWrite
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}

// Invoices adds archive and upload to an invoice Resource and honours the
// archived filter.
type Invoices struct {
	*Resource[domain.Invoice]
	archiveCalls int
	uploadCalls  int
	uploadErr    error
}

// NewInvoices creates an invoice resource holding items.
func NewInvoices(items ...domain.Invoice) *Invoices {
	r := NewResource(func(inv domain.Invoice, id string) domain.Invoice { inv.ID = id; return inv }, items...)
	r.keep = func(inv domain.Invoice, _ domain.Scope, f domain.Filter) bool {
		return f.Archived == nil || inv.Archived == *f.Archived
	}
	return &Invoices{Resource: r}
}

// FailUploads makes Upload return err.
func (r *Invoices) FailUploads(err error) {
	r.mu.Lock()
	r.uploadErr = err
	r.mu.Unlock()
}

// ArchiveCalls reports how many archive requests reached the server.
func (r *Invoices) ArchiveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.archiveCalls
}

// UploadCalls reports how many uploads reached the server.
func (r *Invoices) UploadCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploadCalls
}

func (r *Invoices) Archive(ctx context.Context, scope domain.Scope, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archiveCalls++
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Archived = true
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "invoices", ID: id}
}

func (r *Invoices) Upload(ctx context.Context, scope domain.Scope, id, filename string, body io.Reader) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploadCalls++
	if r.uploadErr != nil {
		return "", r.uploadErr
	}
	return "https://files.example/" + id + "/" + filename, nil
}

// NewClients creates a client resource.
func NewClients(items ...domain.Client) *Resource[domain.Client] {
	return NewResource(func(c domain.Client, id string) domain.Client { c.ID = id; return c }, items...)
}

// NewBankAccounts creates a bank account resource. A scope with a parent
// lists only that client's accounts.
func NewBankAccounts(items ...domain.BankAccount) *Resource[domain.BankAccount] {
	r := NewResource(func(a domain.BankAccount, id string) domain.BankAccount { a.ID = id; return a }, items...)
	r.keep = func(a domain.BankAccount, scope domain.Scope, _ domain.Filter) bool {
		return scope.ParentID == "" || a.ClientID == scope.ParentID
	}
	return r
}

// NewItems creates an item resource.
func NewItems(items ...domain.Item) *Resource[domain.Item] {
	return NewResource(func(it domain.Item, id string) domain.Item { it.ID = id; return it }, items...)
}

// NewTransactions creates a transaction resource.
func NewTransactions(items ...domain.Transaction) *Resource[domain.Transaction] {
	return NewResource(func(tx domain.Transaction, id string) domain.Transaction { tx.ID = id; return tx }, items...)
}

// Backend bundles one fake per collection.
type Backend struct {
	Clients      *Resource[domain.Client]
	BankAccounts *Resource[domain.BankAccount]
	Items        *Resource[domain.Item]
	Invoices     *Invoices
	Transactions *Resource[domain.Transaction]
}

// NewBackend creates empty fakes for every collection.
func NewBackend() *Backend {
	return &Backend{
		Clients:      NewClients(),
		BankAccounts: NewBankAccounts(),
		Items:        NewItems(),
		Invoices:     NewInvoices(),
		Transactions: NewTransactions(),
	}
}
