package model

type RunPhase string

const (
	PhaseRunning     RunPhase = "running"
	PhaseCycle       RunPhase = "cycle"
	PhaseWaiting     RunPhase = "waiting"
	PhaseDone        RunPhase = "done"
	PhaseInterrupted RunPhase = "interrupted"
	PhaseRetrying    RunPhase = "degraded_retry"
)

type CourseState struct {
	CourseCode    string `json:"courseCode"`
	ClassID       string `json:"classId"`
	Enrolled      bool   `json:"enrolled"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"lastError,omitempty"`
	LastAttemptMs int64  `json:"lastAttemptMs,omitempty"`
	EnrolledAtMs  int64  `json:"enrolledAtMs,omitempty"`
}

type RunState struct {
	RunID     string        `json:"runId"`
	Phase     RunPhase      `json:"phase"`
	Cycle     int           `json:"cycle"`
	Remaining []string      `json:"remaining"`
	Courses   []CourseState `json:"courses"`
	StartedMs int64         `json:"startedMs"`
}
