package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"daily_video_bot/internal/domain/catalog"
	"daily_video_bot/internal/domain/subscriber"
	idb "daily_video_bot/internal/infra/database"
	"daily_video_bot/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type armCall struct {
	chatID     int64
	interval   time.Duration
	firstDelay time.Duration
	handle     scheduler.Handle
}

// fakeTimers records arms and never fires on its own; tests call Dispatch directly.
type fakeTimers struct {
	mu     sync.Mutex
	seq    scheduler.Handle
	timers map[int64]scheduler.Handle
	arms   []armCall
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{timers: make(map[int64]scheduler.Handle)}
}

func (f *fakeTimers) Arm(chatID int64, interval, firstDelay time.Duration, fn scheduler.FireFunc) (scheduler.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if interval <= 0 {
		return 0, scheduler.ErrInvalidInterval
	}
	f.seq++
	f.timers[chatID] = f.seq
	f.arms = append(f.arms, armCall{chatID: chatID, interval: interval, firstDelay: firstDelay, handle: f.seq})
	return f.seq, nil
}

func (f *fakeTimers) Cancel(chatID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[chatID]
	delete(f.timers, chatID)
	return ok
}

func (f *fakeTimers) CancelHandle(chatID int64, h scheduler.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.timers[chatID]; !ok || cur != h {
		return false
	}
	delete(f.timers, chatID)
	return true
}

func (f *fakeTimers) Current(chatID int64) (scheduler.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.timers[chatID]
	return h, ok
}

func (f *fakeTimers) NextFire(chatID int64) (time.Time, bool) {
	return time.Time{}, false
}

func (f *fakeTimers) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *fakeTimers) handle(t *testing.T, chatID int64) scheduler.Handle {
	t.Helper()
	h, ok := f.Current(chatID)
	require.True(t, ok, "no timer armed for %d", chatID)
	return h
}

func (f *fakeTimers) armCalls() []armCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]armCall(nil), f.arms...)
}

type sentVideo struct {
	chatID int64
	ref    catalog.ContentRef
}

// recordingClient is a Telegram client double. Setting block makes SendVideo signal
// entered and wait until block is closed.
type recordingClient struct {
	mu      sync.Mutex
	sent    []sentVideo
	failErr error
	entered chan struct{}
	block   chan struct{}
}

func (c *recordingClient) SendVideo(ctx context.Context, chatID int64, ref catalog.ContentRef) error {
	c.mu.Lock()
	block, entered, failErr := c.block, c.entered, c.failErr
	c.mu.Unlock()

	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failErr != nil {
		return failErr
	}

	c.mu.Lock()
	c.sent = append(c.sent, sentVideo{chatID: chatID, ref: ref})
	c.mu.Unlock()
	return nil
}

func (c *recordingClient) setFailure(err error) {
	c.mu.Lock()
	c.failErr = err
	c.mu.Unlock()
}

func (c *recordingClient) sentRefs(chatID int64) []catalog.ContentRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	var refs []catalog.ContentRef
	for _, s := range c.sent {
		if s.chatID == chatID {
			refs = append(refs, s.ref)
		}
	}
	return refs
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendVideo(ctx context.Context, chatID int64, ref catalog.ContentRef) error {
	args := m.Called(ctx, chatID, ref)
	return args.Error(0)
}

type fakeMetrics struct {
	mu         sync.Mutex
	dispatches map[string]int
	actions    map[string]int
	armed      int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{dispatches: map[string]int{}, actions: map[string]int{}}
}

func (m *fakeMetrics) ObserveDispatch(outcome string, _ time.Duration) {
	m.mu.Lock()
	m.dispatches[outcome]++
	m.mu.Unlock()
}

func (m *fakeMetrics) ObserveSubscription(action string) {
	m.mu.Lock()
	m.actions[action]++
	m.mu.Unlock()
}

func (m *fakeMetrics) SetArmedTimers(n int) {
	m.mu.Lock()
	m.armed = n
	m.mu.Unlock()
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestRepo(t *testing.T) subscriber.Repository {
	t.Helper()
	db, err := idb.NewSQLiteConnection(filepath.Join(t.TempDir(), "subscribers.db"))
	require.NoError(t, err)
	repo := idb.NewSQLiteSubscriberRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func defaultTestOptions() DeliveryOptions {
	return DeliveryOptions{
		Interval:             24 * time.Hour,
		SendFirstImmediately: true,
		RecoveryDelay:        10 * time.Second,
		WrapAround:           true,
		SendTimeout:          time.Second,
	}
}

// faultyRepo wraps a real store and fails selected calls on demand.
type faultyRepo struct {
	subscriber.Repository

	mu         sync.Mutex
	getErr     error
	advanceErr error
	deleteErr  error
	listErr    error
}

func (r *faultyRepo) set(fn func(r *faultyRepo)) {
	r.mu.Lock()
	fn(r)
	r.mu.Unlock()
}

func (r *faultyRepo) injected(pick func(*faultyRepo) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pick(r)
}

func (r *faultyRepo) Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	if err := r.injected(func(r *faultyRepo) error { return r.getErr }); err != nil {
		return nil, err
	}
	return r.Repository.Get(ctx, chatID)
}

func (r *faultyRepo) AdvanceCursor(ctx context.Context, chatID int64, index int) error {
	if err := r.injected(func(r *faultyRepo) error { return r.advanceErr }); err != nil {
		return err
	}
	return r.Repository.AdvanceCursor(ctx, chatID, index)
}

func (r *faultyRepo) Delete(ctx context.Context, chatID int64) error {
	if err := r.injected(func(r *faultyRepo) error { return r.deleteErr }); err != nil {
		return err
	}
	return r.Repository.Delete(ctx, chatID)
}

func (r *faultyRepo) ListAll(ctx context.Context) ([]*subscriber.Subscriber, error) {
	if err := r.injected(func(r *faultyRepo) error { return r.listErr }); err != nil {
		return nil, err
	}
	return r.Repository.ListAll(ctx)
}

type testEnv struct {
	svc     *DeliveryService
	repo    subscriber.Repository
	faults  *faultyRepo
	timers  *fakeTimers
	client  *recordingClient
	metrics *fakeMetrics
}

func newTestEnv(t *testing.T, refs []string, opts DeliveryOptions) *testEnv {
	t.Helper()
	faults := &faultyRepo{Repository: newTestRepo(t)}
	env := &testEnv{
		repo:    faults,
		faults:  faults,
		timers:  newFakeTimers(),
		client:  &recordingClient{},
		metrics: newFakeMetrics(),
	}
	env.svc = NewDeliveryService(env.repo, catalog.New(refs), env.client, env.timers, opts, env.metrics, testLogger())
	t.Cleanup(env.svc.Close)
	return env
}

// fire dispatches with the chat's current handle, like the registry would.
func (e *testEnv) fire(t *testing.T, chatID int64) (Outcome, error) {
	t.Helper()
	return e.svc.Dispatch(context.Background(), chatID, e.timers.handle(t, chatID))
}

func (e *testEnv) cursor(t *testing.T, chatID int64) int {
	t.Helper()
	s, err := e.repo.Get(context.Background(), chatID)
	require.NoError(t, err)
	return s.Cursor
}
