package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"warkrs/internal/config"
	"warkrs/internal/logbus"
)

// EmailNotifier mirrors loop events to a mailbox over SMTP. Sends happen in
// their own goroutine per event; failures are logged and swallowed.
type EmailNotifier struct {
	cfg config.EmailConfig
	bus *logbus.Bus

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewEmailNotifier(cfg config.EmailConfig, bus *logbus.Bus) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, bus: bus}
}

// Close waits for in-flight sends.
func (n *EmailNotifier) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) send(subject, body string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		m := gomail.NewMessage()
		m.SetHeader("From", n.cfg.From)
		m.SetHeader("To", n.cfg.To)
		m.SetHeader("Subject", subject)
		m.SetBody("text/plain", body)

		d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.From, n.cfg.Password)

		// gomail dialers are not safe for concurrent use with one
		// connection; serialize sends.
		n.mu.Lock()
		err := d.DialAndSend(m)
		n.mu.Unlock()
		if err != nil && n.bus != nil {
			n.bus.Log("warn", "email send failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (n *EmailNotifier) NotifyRunStarted(_ context.Context, targets []string) {
	n.send("KRS run started",
		fmt.Sprintf("Registration run started for:\n- %s\n", strings.Join(targets, "\n- ")))
}

func (n *EmailNotifier) NotifyCourseRegistered(_ context.Context, code string) {
	n.send("Course registered: "+code,
		fmt.Sprintf("%s is now in your KRS.\n", code))
}

func (n *EmailNotifier) NotifyAllCompleted(_ context.Context, codes []string, elapsed string) {
	body := fmt.Sprintf("All target courses registered:\n- %s\n", strings.Join(codes, "\n- "))
	if elapsed != "" {
		body += "Total time: " + elapsed + "\n"
	}
	n.send("All target courses registered", body)
}

func (n *EmailNotifier) NotifyError(_ context.Context, message, code string) {
	body := message + "\n"
	if code != "" {
		body += "Course: " + code + "\n"
	}
	n.send("KRS run error", body)
}

func (n *EmailNotifier) NotifySessionExpired(_ context.Context) {
	n.send("KRS session expired",
		"The portal session cookies are no longer valid. Log in again, update the config, and restart the run.\n")
}
