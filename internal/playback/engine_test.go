// AngelaMos | 2026
// engine_test.go

package playback

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpa-library/library/internal/core"
)

type memStore struct {
	mu      sync.Mutex
	users   map[int64]bool
	records []Record
	nextID  int64
}

func newMemStore(users ...int64) *memStore {
	m := &memStore{users: map[int64]bool{}}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memStore) WithinLock(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, tx Tx) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.users[userID] {
		return core.ErrNotFound
	}

	snapshot := slices.Clone(m.records)
	next := m.nextID
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.records = snapshot
		m.nextID = next
		return err
	}
	return nil
}

func (m *memStore) forKey(key Key) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if sameKey(r, key) {
			out = append(out, r)
		}
	}
	return out
}

func sameKey(r Record, key Key) bool {
	if r.UserID != key.UserID || r.BookID != key.BookID {
		return false
	}
	if r.ChapterID == nil || key.ChapterID == nil {
		return r.ChapterID == nil && key.ChapterID == nil
	}
	return *r.ChapterID == *key.ChapterID
}

type memTx struct {
	m *memStore
}

func (t *memTx) Latest(_ context.Context, key Key) (*Record, error) {
	var latest *Record
	for i := range t.m.records {
		r := &t.m.records[i]
		if !sameKey(*r, key) {
			continue
		}
		if latest == nil ||
			r.AccessedAt.After(latest.AccessedAt) ||
			(r.AccessedAt.Equal(latest.AccessedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (t *memTx) Create(_ context.Context, rec Record) (int64, error) {
	t.m.nextID++
	rec.ID = t.m.nextID
	t.m.records = append(t.m.records, rec)
	return rec.ID, nil
}

func (t *memTx) Merge(
	_ context.Context,
	id int64,
	progress, duration int,
	at time.Time,
) (bool, error) {
	for i := range t.m.records {
		r := &t.m.records[i]
		if r.ID != id {
			continue
		}
		if r.Progress >= progress {
			return false, nil
		}
		r.Progress = progress
		r.Duration = duration
		r.AccessedAt = at
		return true, nil
	}
	return false, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(v int64) *int64 { return &v }

func newTestEngine(store Store, clock *fakeClock) *Engine {
	return NewEngine(store, WithClock(clock.Now))
}

func TestDecide(t *testing.T) {
	live := &Record{Progress: 40, Duration: 100, AccessedAt: t0}

	tests := []struct {
		name   string
		latest *Record
		p      int
		now    time.Time
		want   Outcome
	}{
		{"no record", nil, 10, t0, OutcomeCreated},
		{"advance", live, 41, t0.Add(time.Minute), OutcomeMerged},
		{"equal progress", live, 40, t0.Add(time.Minute), OutcomeIgnored},
		{"regression", live, 5, t0.Add(time.Minute), OutcomeIgnored},
		{"exactly at window", live, 60, t0.Add(DefaultWindow), OutcomeMerged},
		{"past window", live, 60, t0.Add(DefaultWindow + time.Nanosecond), OutcomeCreated},
		{"stale and lower", live, 1, t0.Add(time.Hour), OutcomeCreated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.latest, Event{Progress: tc.p}, tc.now, DefaultWindow)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRecordPlayEventScenario(t *testing.T) {
	store := newMemStore(7)
	clock := &fakeClock{now: t0}
	engine := newTestEngine(store, clock)
	ctx := context.Background()
	key := Key{UserID: 7, BookID: 3, ChapterID: ptr(2)}

	outcome, err := engine.RecordPlayEvent(ctx, Event{
		UserID: 7, BookID: 3, ChapterID: ptr(2), Duration: 10, Progress: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	clock.Set(t0.Add(2 * time.Minute))
	outcome, err = engine.RecordPlayEvent(ctx, Event{
		UserID: 7, BookID: 3, ChapterID: ptr(2), Duration: 40, Progress: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	rows := store.forKey(key)
	require.Len(t, rows, 1)
	assert.Equal(t, 20, rows[0].Progress)
	assert.Equal(t, 40, rows[0].Duration)
	assert.Equal(t, t0.Add(2*time.Minute), rows[0].AccessedAt)

	clock.Set(t0.Add(12 * time.Minute))
	outcome, err = engine.RecordPlayEvent(ctx, Event{
		UserID: 7, BookID: 3, ChapterID: ptr(2), Duration: 5, Progress: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	rows = store.forKey(key)
	require.Len(t, rows, 2)
	assert.Equal(t, 20, rows[0].Progress)
	assert.Equal(t, 2, rows[1].Progress)
}

func TestRegressionWithinWindowIsIgnored(t *testing.T) {
	for _, p2 := range []int{0, 10, 29, 30} {
		store := newMemStore(1)
		clock := &fakeClock{now: t0}
		engine := newTestEngine(store, clock)
		ctx := context.Background()

		_, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 1, Duration: 50, Progress: 30})
		require.NoError(t, err)

		clock.Set(t0.Add(4 * time.Minute))
		outcome, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 1, Duration: 90, Progress: p2})
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome, "p2=%d", p2)

		rows := store.forKey(Key{UserID: 1, BookID: 1})
		require.Len(t, rows, 1)
		assert.Equal(t, 30, rows[0].Progress)
		assert.Equal(t, 50, rows[0].Duration)
		assert.Equal(t, t0, rows[0].AccessedAt)
	}
}

func TestMergeKeepsLargestDuration(t *testing.T) {
	store := newMemStore(1)
	clock := &fakeClock{now: t0}
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	_, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 2, Duration: 300, Progress: 10})
	require.NoError(t, err)

	clock.Set(t0.Add(time.Minute))
	outcome, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 2, Duration: 120, Progress: 11})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	rows := store.forKey(Key{UserID: 1, BookID: 2})
	require.Len(t, rows, 1)
	assert.Equal(t, 11, rows[0].Progress)
	assert.Equal(t, 300, rows[0].Duration)
}

func TestBookLevelStreamIsSeparate(t *testing.T) {
	store := newMemStore(1)
	clock := &fakeClock{now: t0}
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	_, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 2, Progress: 50})
	require.NoError(t, err)

	outcome, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 2, ChapterID: ptr(1), Progress: 10})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	assert.Len(t, store.forKey(Key{UserID: 1, BookID: 2}), 1)
	assert.Len(t, store.forKey(Key{UserID: 1, BookID: 2, ChapterID: ptr(1)}), 1)
}

func TestOutOfRangeProgressIsStoredAsIs(t *testing.T) {
	store := newMemStore(1)
	engine := newTestEngine(store, &fakeClock{now: t0})

	_, err := engine.RecordPlayEvent(context.Background(), Event{UserID: 1, BookID: 1, Progress: 140})
	require.NoError(t, err)

	rows := store.forKey(Key{UserID: 1, BookID: 1})
	require.Len(t, rows, 1)
	assert.Equal(t, 140, rows[0].Progress)
}

func TestEventTimeOverridesClock(t *testing.T) {
	store := newMemStore(1)
	engine := newTestEngine(store, &fakeClock{now: t0.Add(time.Hour)})
	at := t0.In(time.FixedZone("X", 3600))

	_, err := engine.RecordPlayEvent(context.Background(), Event{UserID: 1, BookID: 1, Progress: 1, At: at})
	require.NoError(t, err)

	rows := store.forKey(Key{UserID: 1, BookID: 1})
	require.Len(t, rows, 1)
	assert.True(t, rows[0].AccessedAt.Equal(t0))
	assert.Equal(t, time.UTC, rows[0].AccessedAt.Location())
}

func TestConcurrentFirstEventsCreateOneRow(t *testing.T) {
	for range 20 {
		store := newMemStore(7)
		engine := newTestEngine(store, &fakeClock{now: t0})
		ctx := context.Background()

		var wg sync.WaitGroup
		outcomes := make([]Outcome, 2)
		for i, p := range []int{30, 10} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := engine.RecordPlayEvent(ctx, Event{
					UserID: 7, BookID: 3, ChapterID: ptr(2), Duration: 10, Progress: p,
				})
				assert.NoError(t, err)
				outcomes[i] = out
			}()
		}
		wg.Wait()

		rows := store.forKey(Key{UserID: 7, BookID: 3, ChapterID: ptr(2)})
		require.Len(t, rows, 1)
		assert.Equal(t, 30, rows[0].Progress)
		assert.Contains(t, outcomes, OutcomeCreated)
	}
}

func TestRecordPlayEventValidation(t *testing.T) {
	engine := newTestEngine(newMemStore(1), &fakeClock{now: t0})
	ctx := context.Background()

	for _, ev := range []Event{
		{BookID: 1},
		{UserID: 1},
		{UserID: 1, BookID: 1, ChapterID: ptr(0)},
	} {
		_, err := engine.RecordPlayEvent(ctx, ev)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}
}

func TestRecordPlayEventUnknownUser(t *testing.T) {
	engine := newTestEngine(newMemStore(), &fakeClock{now: t0})

	_, err := engine.RecordPlayEvent(context.Background(), Event{UserID: 9, BookID: 1, Progress: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

type raceTx struct {
	*memTx
}

func (raceTx) Merge(context.Context, int64, int, int, time.Time) (bool, error) {
	return false, nil
}

type raceStore struct {
	*memStore
}

func (s raceStore) WithinLock(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, tx Tx) error,
) error {
	return s.memStore.WithinLock(ctx, userID, func(ctx context.Context, tx Tx) error {
		return fn(ctx, raceTx{memTx: tx.(*memTx)})
	})
}

func TestGuardedMergeThatMissesIsIgnored(t *testing.T) {
	mem := newMemStore(1)
	mem.records = []Record{{ID: 1, UserID: 1, BookID: 1, Progress: 10, AccessedAt: t0}}
	mem.nextID = 1

	engine := newTestEngine(raceStore{memStore: mem}, &fakeClock{now: t0.Add(time.Minute)})

	outcome, err := engine.RecordPlayEvent(context.Background(), Event{UserID: 1, BookID: 1, Progress: 50})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

type failingTx struct {
	*memTx
}

var errDisk = errors.New("disk full")

func (failingTx) Create(context.Context, Record) (int64, error) {
	return 0, errDisk
}

type failingStore struct {
	*memStore
}

func (s failingStore) WithinLock(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, tx Tx) error,
) error {
	return s.memStore.WithinLock(ctx, userID, func(ctx context.Context, tx Tx) error {
		return fn(ctx, failingTx{memTx: tx.(*memTx)})
	})
}

func TestStoreFailurePropagates(t *testing.T) {
	mem := newMemStore(1)
	engine := newTestEngine(failingStore{memStore: mem}, &fakeClock{now: t0})

	outcome, err := engine.RecordPlayEvent(context.Background(), Event{UserID: 1, BookID: 1, Progress: 1})
	assert.ErrorIs(t, err, errDisk)
	assert.Empty(t, outcome)
	assert.Empty(t, mem.forKey(Key{UserID: 1, BookID: 1}))
}

func TestWindowOption(t *testing.T) {
	store := newMemStore(1)
	clock := &fakeClock{now: t0}
	engine := NewEngine(store, WithClock(clock.Now), WithWindow(time.Minute))
	ctx := context.Background()

	assert.Equal(t, time.Minute, engine.Window())

	_, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 1, Progress: 1})
	require.NoError(t, err)

	clock.Set(t0.Add(2 * time.Minute))
	outcome, err := engine.RecordPlayEvent(ctx, Event{UserID: 1, BookID: 1, Progress: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}
