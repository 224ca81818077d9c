package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var biz = domain.Scope{BusinessID: "b1"}

func TestCollection_StartsIdle(t *testing.T) {
	c := newClientCollection(t, storetest.NewClients())
	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
}

func TestFetchAll_ReplacesList(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"}, domain.Client{ID: "c2"})
	c := newClientCollection(t, res)

	snap, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, []string{"c1", "c2"}, ids(snap.Items))
	assert.Equal(t, 2, snap.Total)
	assert.True(t, c.Matches(biz, domain.Filter{}))
	assert.False(t, c.Matches(biz, domain.Filter{Search: "x"}))

	res.Replace(domain.Client{ID: "c3"})

	snap, err = c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3"}, ids(snap.Items), "fetch overwrites, never merges")
}

func TestFetchAll_ErrorKeepsPreviousItems(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"})
	c := newClientCollection(t, res)
	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	boom := errors.New("boom")
	res.FailList(boom)

	snap, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateError, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, []string{"c1"}, ids(snap.Items))
}

func TestFetchAll_CoalescesIdenticalRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	res := storetest.NewClients(domain.Client{ID: "c1"})
	res.OnList(func(n int) {
		if n == 1 {
			close(started)
			<-release
		}
	})
	c := newClientCollection(t, res)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = c.FetchAll(context.Background(), biz, domain.Filter{})
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = c.FetchAll(context.Background(), biz, domain.Filter{})
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	list, _, _ := res.Calls()
	assert.Equal(t, 1, list)
}

func TestFetchAll_StaleResponseDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	res := storetest.NewClients(domain.Client{ID: "c1"})
	res.OnList(func(n int) {
		if n == 1 {
			close(started)
			<-release
		}
	})
	c := newClientCollection(t, res)

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchAll(context.Background(), biz, domain.Filter{Search: "old"})
		done <- err
	}()
	<-started

	_, err := c.FetchAll(context.Background(), biz, domain.Filter{Search: "new"})
	require.NoError(t, err)
	close(release)

	err = <-done
	var sup *domain.ErrSuperseded
	require.True(t, errors.As(err, &sup))
	assert.Equal(t, "clients", sup.Collection)

	snap := c.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "new", snap.Filter.Search)
}

func TestFetchAll_CallerCancelDoesNotAbortSharedRequest(t *testing.T) {
	release := make(chan struct{})
	res := storetest.NewClients(domain.Client{ID: "c1"})
	res.OnList(func(int) { <-release })
	c := newClientCollection(t, res)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchAll(ctx, biz, domain.Filter{})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		return c.Snapshot().State == StateLoaded
	}, time.Second, 5*time.Millisecond)
}

func TestCreate_RefreshesAndHoldsIDOnce(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"})
	c := newClientCollection(t, res)
	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	result, err := c.Create(context.Background(), biz, domain.Client{FullName: "Sara"})
	require.NoError(t, err)
	assert.Equal(t, RefreshRequery, result.Policy)
	assert.Equal(t, "id-1", result.Entity.ID)

	count := 0
	for _, id := range ids(result.Snapshot.Items) {
		if id == result.Entity.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, StateLoaded, result.Snapshot.State)

	list, _, _ := res.Calls()
	assert.Equal(t, 2, list, "create is followed by a full re-fetch")
}

func TestCreate_RefreshKeepsCurrentFilter(t *testing.T) {
	res := storetest.NewClients()
	c := newClientCollection(t, res)
	filter := domain.Filter{Search: "sa", Page: 1}
	_, err := c.FetchAll(context.Background(), biz, filter)
	require.NoError(t, err)

	result, err := c.Create(context.Background(), biz, domain.Client{FullName: "Sara"})
	require.NoError(t, err)
	assert.Equal(t, filter.Key(), result.Snapshot.Filter.Key())
}

func TestMutationFailure_KeepsItemsAndSetsError(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"})
	c := newClientCollection(t, res)
	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	conflict := &domain.ErrConflict{Message: "duplicate"}
	res.FailWrites(conflict)

	_, err = c.Create(context.Background(), biz, domain.Client{FullName: "Sara"})
	var ce *domain.ErrConflict
	require.True(t, errors.As(err, &ce))

	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, []string{"c1"}, ids(snap.Items))
}

func TestRemove_Idempotent(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"}, domain.Client{ID: "c2"})
	c := newClientCollection(t, res)
	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	result, err := c.Remove(context.Background(), biz, "c1")
	require.NoError(t, err)
	assert.Equal(t, RefreshLocalRemove, result.Policy)
	assert.Equal(t, "c1", result.Entity.ID)
	assert.Equal(t, []string{"c2"}, ids(result.Snapshot.Items))
	assert.Equal(t, 1, result.Snapshot.Total)

	result, err = c.Remove(context.Background(), biz, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids(result.Snapshot.Items))
	assert.Equal(t, StateLoaded, result.Snapshot.State)

	list, _, _ := res.Calls()
	assert.Equal(t, 1, list, "remove does not re-fetch")
}

func TestRemove_InvalidatesInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	res := storetest.NewClients(domain.Client{ID: "c1"}, domain.Client{ID: "c2"})
	c := newClientCollection(t, res)
	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	var snapshotAtList []domain.Client
	res.OnList(func(n int) {
		if n == 2 {
			snapshotAtList = res.Items()
			close(started)
			<-release
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchAll(context.Background(), biz, domain.Filter{Search: "x"})
		done <- err
	}()
	<-started

	_, err = c.Remove(context.Background(), biz, "c1")
	require.NoError(t, err)
	close(release)

	var sup *domain.ErrSuperseded
	require.True(t, errors.As(<-done, &sup))
	assert.Len(t, snapshotAtList, 2)
	assert.NotContains(t, ids(c.Snapshot().Items), "c1")
}

func TestMutations_Serialized(t *testing.T) {
	var inFlight, maxInFlight int32
	res := storetest.NewClients()
	res.OnWrite(func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	})
	c := newClientCollection(t, res)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Create(context.Background(), biz, domain.Client{FullName: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	snap, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, snap.Items, 5)
}

func TestMutation_CancelledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	res := storetest.NewClients()
	res.OnWrite(func() { <-release })
	c := newClientCollection(t, res)

	go func() { _, _ = c.Create(context.Background(), biz, domain.Client{FullName: "first"}) }()
	require.Eventually(t, func() bool { return c.gate.InFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Create(ctx, biz, domain.Client{FullName: "second"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestSubscribe_NotifiesUntilUnsubscribed(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"})
	c := newClientCollection(t, res)

	var mu sync.Mutex
	var states []State
	unsubscribe := c.Subscribe(func(s Snapshot[domain.Client]) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	_, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	_, err = c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLoading, StateLoaded}, states)
}

func TestSnapshot_IsACopy(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1"})
	c := newClientCollection(t, res)
	snap, err := c.FetchAll(context.Background(), biz, domain.Filter{})
	require.NoError(t, err)

	snap.Items[0].ID = "mutated"
	assert.Equal(t, "c1", c.Snapshot().Items[0].ID)
}

func TestGet_DetailCacheInvalidatedOnUpdate(t *testing.T) {
	res := storetest.NewClients(domain.Client{ID: "c1", FullName: "Sara"})
	c := newClientCollection(t, res)

	for i := 0; i < 2; i++ {
		got, err := c.Get(context.Background(), biz, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Sara", got.FullName)
	}
	_, gets, _ := res.Calls()
	assert.Equal(t, 1, gets)

	_, err := c.Update(context.Background(), biz, "c1", domain.Client{FullName: "Sara K"})
	require.NoError(t, err)

	got, err := c.Get(context.Background(), biz, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Sara K", got.FullName)
	_, gets, _ = res.Calls()
	assert.Equal(t, 2, gets)
}
