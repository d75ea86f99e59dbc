package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"warkrs/internal/config"
	"warkrs/internal/model"
)

// fakeService scripts the portal: a course counts as enrolled once it is in
// the granted set, and registerResult decides what RegisterAndVerify reports.
type fakeService struct {
	mu            sync.Mutex
	granted       map[string]bool
	registerCalls map[string]int
	registerFn    func(code string, call int) (bool, error)
	enrolledFn    func(code string) // optional hook, runs inside IsEnrolled
}

func newFakeService() *fakeService {
	return &fakeService{
		granted:       make(map[string]bool),
		registerCalls: make(map[string]int),
	}
}

func (f *fakeService) IsEnrolled(_ context.Context, code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrolledFn != nil {
		f.enrolledFn(code)
	}
	return f.granted[code]
}

func (f *fakeService) RegisterAndVerify(_ context.Context, code, _ string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	f.registerCalls[code]++
	call := f.registerCalls[code]
	fn := f.registerFn
	f.mu.Unlock()

	ok, err := true, error(nil)
	if fn != nil {
		ok, err = fn(code, call)
	}
	if ok && err == nil {
		f.mu.Lock()
		f.granted[code] = true
		f.mu.Unlock()
	}
	return ok, err
}

func (f *fakeService) calls(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls[code]
}

type recordingNotifier struct {
	mu             sync.Mutex
	started        [][]string
	registered     []string
	completed      [][]string
	errors         []string
	sessionExpired int
	onError        func() // optional hooks
	onSession      func()
}

func (r *recordingNotifier) NotifyRunStarted(_ context.Context, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, targets)
}

func (r *recordingNotifier) NotifyCourseRegistered(_ context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, code)
}

func (r *recordingNotifier) NotifyAllCompleted(_ context.Context, codes []string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, codes)
}

func (r *recordingNotifier) NotifyError(_ context.Context, message, _ string) {
	r.mu.Lock()
	hook := r.onError
	r.errors = append(r.errors, message)
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *recordingNotifier) NotifySessionExpired(_ context.Context) {
	r.mu.Lock()
	r.sessionExpired++
	hook := r.onSession
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// zeroDelays keeps every sleep at zero so loop tests run instantly. The
// recovery pause has a floor, so panic tests cancel instead of waiting it out.
func zeroDelays() config.Settings {
	return config.Settings{}
}

func TestRunRegistersAllTargets(t *testing.T) {
	svc := newFakeService()
	notifier := &recordingNotifier{}
	c := New(Options{
		Service:  svc,
		Notifier: notifier,
		Targets:  map[string]string{"IF25-10001": "55", "SD25-40003": "77"},
		Settings: zeroDelays(),
	})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := svc.calls("IF25-10001"); got != 1 {
		t.Errorf("IF25-10001 submitted %d times, want exactly 1", got)
	}
	if got := svc.calls("SD25-40003"); got != 1 {
		t.Errorf("SD25-40003 submitted %d times, want exactly 1", got)
	}

	state := c.State()
	if state.Phase != model.PhaseDone {
		t.Errorf("phase: got %q, want %q", state.Phase, model.PhaseDone)
	}
	if len(state.Remaining) != 0 {
		t.Errorf("remaining should be empty, got %v", state.Remaining)
	}
	for _, cs := range state.Courses {
		if !cs.Enrolled {
			t.Errorf("course %s not marked enrolled", cs.CourseCode)
		}
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.started) != 1 {
		t.Errorf("run started notifications: got %d, want 1", len(notifier.started))
	}
	if len(notifier.registered) != 2 {
		t.Errorf("registered notifications: got %v", notifier.registered)
	}
	if len(notifier.completed) != 1 {
		t.Fatalf("completed notifications: got %d, want 1", len(notifier.completed))
	}
	want := []string{"IF25-10001", "SD25-40003"}
	got := append([]string(nil), notifier.completed[0]...)
	if len(got) != 2 {
		t.Fatalf("completed codes: got %v, want %v", got, want)
	}
}

func TestRunSkipsAlreadyEnrolledCourse(t *testing.T) {
	svc := newFakeService()
	svc.granted["IF25-10001"] = true
	c := New(Options{
		Service:  svc,
		Targets:  map[string]string{"IF25-10001": "55"},
		Settings: zeroDelays(),
	})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := svc.calls("IF25-10001"); got != 0 {
		t.Fatalf("an already-enrolled course must never be submitted, got %d submissions", got)
	}
}

func TestRunRetriesUnconfirmedRegistration(t *testing.T) {
	svc := newFakeService()
	svc.registerFn = func(_ string, call int) (bool, error) {
		// Quota full for the first two cycles, then a slot opens.
		return call >= 3, nil
	}
	c := New(Options{
		Service:  svc,
		Targets:  map[string]string{"IF25-10001": "55"},
		Settings: zeroDelays(),
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not terminate after the slot opened")
	}

	if got := svc.calls("IF25-10001"); got != 3 {
		t.Fatalf("expected 3 submissions before success, got %d", got)
	}
	if c.State().Cycle < 3 {
		t.Fatalf("expected at least 3 cycles, got %d", c.State().Cycle)
	}
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := newFakeService()
	svc.registerFn = func(_ string, call int) (bool, error) {
		if call >= 3 {
			cancel()
		}
		return false, nil
	}
	notifier := &recordingNotifier{}
	c := New(Options{
		Service:  svc,
		Notifier: notifier,
		Targets:  map[string]string{"IF25-10001": "55"},
		Settings: zeroDelays(),
	})

	err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	state := c.State()
	if state.Phase != model.PhaseInterrupted {
		t.Errorf("phase: got %q, want %q", state.Phase, model.PhaseInterrupted)
	}
	if !reflect.DeepEqual(state.Remaining, []string{"IF25-10001"}) {
		t.Errorf("remaining: got %v, the target must survive an interruption", state.Remaining)
	}
	if svc.calls("IF25-10001") < 3 {
		t.Errorf("expected at least 3 submissions, got %d", svc.calls("IF25-10001"))
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.errors) == 0 {
		t.Error("interruption should produce an error notification")
	}
	if len(notifier.completed) != 0 {
		t.Error("an interrupted run must not report completion")
	}
}

func TestRunSessionExpiredClassification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := newFakeService()
	svc.registerFn = func(_ string, _ int) (bool, error) {
		return false, errors.New("GET /pilih_mk: redirected to login page")
	}
	notifier := &recordingNotifier{onSession: cancel}
	c := New(Options{
		Service:  svc,
		Notifier: notifier,
		Targets:  map[string]string{"IF25-10001": "55"},
		Settings: zeroDelays(),
	})

	_ = c.Run(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.sessionExpired != 1 {
		t.Fatalf("session-expired notifications: got %d, want 1", notifier.sessionExpired)
	}
}

func TestRunRecoversFromCyclePanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := newFakeService()
	svc.enrolledFn = func(string) { panic("boom") }
	notifier := &recordingNotifier{
		// Cancel once the recovery path has fired so the test does not sit
		// through the recovery pause.
		onError: func() { cancel() },
	}
	c := New(Options{
		Service:  svc,
		Notifier: notifier,
		Targets:  map[string]string{"IF25-10001": "55"},
		Settings: zeroDelays(),
	})

	err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.errors) == 0 {
		t.Fatal("a cycle panic must surface as an error notification")
	}
}

func TestRunWithoutTargets(t *testing.T) {
	c := New(Options{Service: newFakeService(), Settings: zeroDelays()})
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("expected an error for an empty target set")
	}
}
