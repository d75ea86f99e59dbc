package model

// Attempt is the transient result of one registration try. It drives the
// loop's control flow and, when a journal is configured, is recorded for
// later inspection. It is never read back by the loop itself.
type Attempt struct {
	ID         string `json:"id"`
	RunID      string `json:"runId"`
	CourseCode string `json:"courseCode"`
	ClassID    string `json:"classId"`
	Submitted  bool   `json:"submitted"`
	Verified   bool   `json:"verified"`
	Error      string `json:"error,omitempty"`
	AtMs       int64  `json:"atMs"`
}
