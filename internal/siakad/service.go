package siakad

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"warkrs/internal/config"
	"warkrs/internal/logbus"
)

// Service composes the client and the extractor into the domain operations
// the registration loop runs against.
type Service struct {
	client   *Client
	urls     config.URLsConfig
	bus      *logbus.Bus
	debugDir string
}

func NewService(client *Client, urls config.URLsConfig, bus *logbus.Bus) *Service {
	return &Service{client: client, urls: urls, bus: bus}
}

// EnableDebugDumps makes every enrollment fetch also write the raw HTML into
// dir, for diagnosing portal layout changes. Off the hot path by default.
func (s *Service) EnableDebugDumps(dir string) {
	s.debugDir = dir
}

// EnrolledCourses fetches the enrollment page and returns the set of codes
// currently in the KRS. The portal is the source of truth and may change
// behind our back, so the set is recomputed on every call and never cached.
// Any failure yields an empty set: an enrollment-check problem must not
// abort the loop, the courses are simply treated as not yet enrolled.
func (s *Service) EnrolledCourses(ctx context.Context) map[string]struct{} {
	resp, err := s.client.Get(ctx, s.urls.PilihMK)
	if err != nil {
		s.log("warn", "enrollment fetch failed", map[string]any{"error": err.Error()})
		return map[string]struct{}{}
	}
	body := resp.String()
	if s.debugDir != "" {
		s.dumpHTML("enrolled_courses.html", body)
		s.log("debug", "page structure", map[string]any{"analysis": AnalyzePageStructure(body)})
	}

	enrolled := ParseEnrolledCourses(body)
	s.log("debug", "enrollment snapshot", map[string]any{
		"count":   len(enrolled),
		"courses": sortedCodes(enrolled),
	})
	return enrolled
}

// IsEnrolled always re-fetches: a stale snapshot would report false
// positives or negatives in a fast-moving quota system.
func (s *Service) IsEnrolled(ctx context.Context, code string) bool {
	_, ok := s.EnrolledCourses(ctx)[code]
	return ok
}

// Register submits the registration form for one class section. A 200 or
// 303 only means the portal accepted the request for processing; it still
// rejects silently on full quota, so callers must verify with an independent
// read. Transport failures are returned so the loop can classify them.
func (s *Service) Register(ctx context.Context, classID string) (bool, error) {
	resp, err := s.client.PostForm(ctx, s.urls.SimpanKRS, map[string]string{"idkelas": classID})
	if err != nil {
		return false, fmt.Errorf("register class %s: %w", classID, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusSeeOther:
		if msg := ExtractAlertMessage(resp.String()); msg != "" {
			s.log("info", "portal response", map[string]any{"classId": classID, "alert": msg})
		}
		return true, nil
	default:
		s.log("warn", "unexpected registration status", map[string]any{
			"classId": classID,
			"status":  resp.StatusCode(),
		})
		return false, nil
	}
}

// VerifyRegistration waits out the portal's commit window, then re-checks
// enrollment membership.
func (s *Service) VerifyRegistration(ctx context.Context, code string, delay time.Duration) bool {
	if !sleepFor(ctx, delay) {
		return false
	}
	return s.IsEnrolled(ctx, code)
}

// RegisterAndVerify submits a registration and confirms it with a follow-up
// read. When the POST is not accepted it short-circuits without sleeping or
// re-reading.
func (s *Service) RegisterAndVerify(ctx context.Context, code, classID string, verifyDelay time.Duration) (bool, error) {
	accepted, err := s.Register(ctx, classID)
	if err != nil {
		return false, err
	}
	if !accepted {
		return false, nil
	}
	return s.VerifyRegistration(ctx, code, verifyDelay), nil
}

func (s *Service) dumpHTML(name, body string) {
	if err := os.MkdirAll(s.debugDir, 0o755); err != nil {
		s.log("warn", "debug dump failed", map[string]any{"error": err.Error()})
		return
	}
	path := filepath.Join(s.debugDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		s.log("warn", "debug dump failed", map[string]any{"error": err.Error()})
		return
	}
	s.log("debug", "saved debug html", map[string]any{"path": path})
}

func (s *Service) log(level, msg string, fields map[string]any) {
	if s.bus != nil {
		s.bus.Log(level, msg, fields)
	}
}

func sortedCodes(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
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
