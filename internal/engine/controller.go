package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"warkrs/internal/config"
	"warkrs/internal/logbus"
	"warkrs/internal/model"
	"warkrs/internal/notify"
	"warkrs/internal/store/sqlite"
)

// RegistrationService is the slice of the portal service the loop needs.
type RegistrationService interface {
	IsEnrolled(ctx context.Context, code string) bool
	RegisterAndVerify(ctx context.Context, code, classID string, verifyDelay time.Duration) (bool, error)
}

type Options struct {
	Service  RegistrationService
	Bus      *logbus.Bus
	Notifier notify.Notifier // optional
	Journal  *sqlite.Store   // optional attempt journal
	Targets  map[string]string
	Settings config.Settings
}

// Controller owns the remaining-targets set and runs registration cycles
// until every target is enrolled or the context is cancelled. Execution is
// strictly sequential: one course, one request in flight at a time; all
// waiting is explicit, context-aware sleeping. The mutex only guards the
// state snapshot read by the status server.
type Controller struct {
	svc      RegistrationService
	bus      *logbus.Bus
	notifier notify.Notifier
	journal  *sqlite.Store
	settings config.Settings

	runID     string
	startedAt time.Time

	mu        sync.Mutex
	phase     model.RunPhase
	cycle     int
	remaining map[string]string
	states    map[string]*model.CourseState
	succeeded []string
}

func New(opts Options) *Controller {
	c := &Controller{
		svc:       opts.Service,
		bus:       opts.Bus,
		notifier:  opts.Notifier,
		journal:   opts.Journal,
		settings:  opts.Settings,
		runID:     uuid.NewString(),
		phase:     model.PhaseRunning,
		remaining: make(map[string]string, len(opts.Targets)),
		states:    make(map[string]*model.CourseState, len(opts.Targets)),
	}
	for code, classID := range opts.Targets {
		c.remaining[code] = classID
		c.states[code] = &model.CourseState{CourseCode: code, ClassID: classID}
	}
	return c
}

// Run blocks until all targets are enrolled or ctx is cancelled. Unexpected
// failures inside a cycle do not terminate the run: the loop reports them,
// pauses for the recovery delay and tries again. Only cancellation and an
// empty remaining set are normal exits.
func (c *Controller) Run(ctx context.Context) error {
	if len(c.remaining) == 0 {
		return fmt.Errorf("no target courses configured")
	}

	c.startedAt = time.Now()
	targets := c.remainingCodes()
	c.log("info", "run started", map[string]any{"runId": c.runID, "targets": targets})
	if c.notifier != nil {
		c.notifier.NotifyRunStarted(ctx, targets)
	}

	for len(c.remainingCodes()) > 0 {
		if ctx.Err() != nil {
			return c.finishInterrupted(ctx)
		}

		c.setPhase(model.PhaseCycle)
		if err := c.safeCycle(ctx); err != nil && ctx.Err() == nil {
			c.log("error", "unexpected cycle failure, retrying after pause", map[string]any{
				"error": err.Error(),
				"pause": c.settings.RecoveryPause().String(),
			})
			if c.notifier != nil {
				c.notifier.NotifyError(ctx, err.Error(), "")
			}
			c.setPhase(model.PhaseRetrying)
			if !sleepFor(ctx, c.settings.RecoveryPause()) {
				return c.finishInterrupted(ctx)
			}
			continue
		}

		if len(c.remainingCodes()) == 0 {
			break
		}
		if ctx.Err() != nil {
			return c.finishInterrupted(ctx)
		}

		c.log("info", "cycle complete, waiting before next cycle", map[string]any{
			"cycle":     c.cycleCount(),
			"remaining": c.remainingCodes(),
			"delay":     c.settings.CycleDelay().String(),
		})
		c.setPhase(model.PhaseWaiting)
		if !sleepFor(ctx, c.settings.CycleDelay()) {
			return c.finishInterrupted(ctx)
		}
	}

	c.setPhase(model.PhaseDone)
	elapsed := time.Since(c.startedAt).Round(time.Second).String()
	succeeded := c.succeededCodes()
	c.log("info", "all target courses registered", map[string]any{
		"courses": succeeded,
		"elapsed": elapsed,
	})
	if c.notifier != nil {
		c.notifier.NotifyAllCompleted(ctx, succeeded, elapsed)
	}
	return nil
}

// safeCycle runs one cycle and converts a panic into an error so a bug in a
// single cycle degrades into a pause-and-retry instead of killing the run.
func (c *Controller) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	c.mu.Lock()
	c.cycle++
	cycle := c.cycle
	c.mu.Unlock()
	c.publishState()

	for _, code := range c.remainingCodes() {
		if ctx.Err() != nil {
			return nil
		}
		c.processCourse(ctx, code, cycle)
		if !sleepFor(ctx, c.settings.RequestDelay()) {
			return nil
		}
	}
	return nil
}

func (c *Controller) processCourse(ctx context.Context, code string, cycle int) {
	c.mu.Lock()
	classID, ok := c.remaining[code]
	c.mu.Unlock()
	if !ok {
		return
	}

	c.touch(code)

	// Never re-submit for a course the portal already granted, whether by an
	// earlier cycle, another process or a manual action.
	if c.svc.IsEnrolled(ctx, code) {
		c.log("info", "already enrolled, removing from targets", map[string]any{"course": code})
		c.markEnrolled(code)
		return
	}

	c.log("info", "attempting registration", map[string]any{
		"course":  code,
		"classId": classID,
		"cycle":   cycle,
	})

	verified, err := c.svc.RegisterAndVerify(ctx, code, classID, c.settings.VerifyDelay())
	c.recordAttempt(ctx, code, classID, err == nil, verified, err)

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		c.setCourseError(code, err.Error())
		if IsSessionExpired(err) {
			c.log("error", "session appears to be expired", map[string]any{
				"course": code,
				"error":  err.Error(),
			})
			if c.notifier != nil {
				c.notifier.NotifySessionExpired(ctx)
			}
			return
		}
		c.log("error", "registration attempt failed", map[string]any{
			"course": code,
			"error":  err.Error(),
		})
		if c.notifier != nil {
			c.notifier.NotifyError(ctx, err.Error(), code)
		}

	case verified:
		c.log("info", "registration confirmed", map[string]any{"course": code})
		c.markEnrolled(code)
		if c.notifier != nil {
			c.notifier.NotifyCourseRegistered(ctx, code)
		}

	default:
		// The portal accepted the POST but the course never showed up:
		// quota full or section already taken. The two are indistinguishable
		// from the response, so just keep the target for the next cycle.
		c.setCourseError(code, "not enrolled after submission (quota full or already taken)")
		c.log("warn", "registration not confirmed, keeping target", map[string]any{"course": code})
	}
}

func (c *Controller) finishInterrupted(ctx context.Context) error {
	c.setPhase(model.PhaseInterrupted)
	remaining := c.remainingCodes()
	c.log("info", "run interrupted", map[string]any{"remaining": remaining})
	if c.notifier != nil {
		// Notifiers get a context that is not already cancelled.
		c.notifier.NotifyError(context.WithoutCancel(ctx),
			fmt.Sprintf("run interrupted with %d target(s) remaining", len(remaining)), "")
	}
	return ctx.Err()
}

// markEnrolled removes a course from the remaining set. This is the only
// code path that shrinks the set; nothing ever adds a course back, so a
// granted course is never retried within a run.
func (c *Controller) markEnrolled(code string) {
	c.mu.Lock()
	if _, ok := c.remaining[code]; ok {
		delete(c.remaining, code)
		c.succeeded = append(c.succeeded, code)
	}
	if st := c.states[code]; st != nil {
		st.Enrolled = true
		st.EnrolledAtMs = time.Now().UnixMilli()
		st.LastError = ""
	}
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) recordAttempt(ctx context.Context, code, classID string, submitted, verified bool, attemptErr error) {
	c.mu.Lock()
	if st := c.states[code]; st != nil {
		st.Attempts++
	}
	c.mu.Unlock()

	if c.journal == nil {
		return
	}
	errText := ""
	if attemptErr != nil {
		errText = attemptErr.Error()
	}
	if _, err := c.journal.RecordAttempt(context.WithoutCancel(ctx), model.Attempt{
		RunID:      c.runID,
		CourseCode: code,
		ClassID:    classID,
		Submitted:  submitted,
		Verified:   verified,
		Error:      errText,
	}); err != nil {
		c.log("warn", "journal write failed", map[string]any{"error": err.Error()})
	}
}

func (c *Controller) setCourseError(code, msg string) {
	c.mu.Lock()
	if st := c.states[code]; st != nil {
		st.LastError = msg
	}
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) touch(code string) {
	c.mu.Lock()
	if st := c.states[code]; st != nil {
		st.LastAttemptMs = time.Now().UnixMilli()
	}
	c.mu.Unlock()
}

func (c *Controller) setPhase(p model.RunPhase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) cycleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Controller) remainingCodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.remaining))
	for code := range c.remaining {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) succeededCodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.succeeded...)
}

// State returns a snapshot for the status server.
func (c *Controller) State() model.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := model.RunState{
		RunID:     c.runID,
		Phase:     c.phase,
		Cycle:     c.cycle,
		StartedMs: c.startedAt.UnixMilli(),
	}
	for code := range c.remaining {
		out.Remaining = append(out.Remaining, code)
	}
	sort.Strings(out.Remaining)
	for _, st := range c.states {
		out.Courses = append(out.Courses, *st)
	}
	sort.Slice(out.Courses, func(i, j int) bool {
		return out.Courses[i].CourseCode < out.Courses[j].CourseCode
	})
	return out
}

func (c *Controller) publishState() {
	if c.bus != nil {
		c.bus.Publish("run_state", c.State())
	}
}

func (c *Controller) log(level, msg string, fields map[string]any) {
	if c.bus != nil {
		c.bus.Log(level, msg, fields)
	}
}

func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
