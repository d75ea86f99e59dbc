package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"warkrs/internal/config"
	"warkrs/internal/logbus"
)

// TelegramNotifier delivers loop events through the Telegram Bot API.
// Messages are queued and drained by a single worker so a slow or down API
// never blocks the registration loop; when the queue is full the message is
// dropped with a warning.
type TelegramNotifier struct {
	cfg    config.TelegramConfig
	client *resty.Client
	bus    *logbus.Bus

	mu     sync.Mutex
	queue  chan string
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

func NewTelegramNotifier(cfg config.TelegramConfig, bus *logbus.Bus) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		cfg: cfg,
		client: resty.New().
			SetBaseURL("https://api.telegram.org/bot" + cfg.BotToken).
			SetTimeout(10 * time.Second),
		bus:    bus,
		queue:  make(chan string, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *TelegramNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

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

func (n *TelegramNotifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			// Drain whatever is already queued before shutting down.
			for {
				select {
				case text := <-n.queue:
					n.send(text)
				default:
					return
				}
			}
		case text := <-n.queue:
			n.send(text)
		}
	}
}

func (n *TelegramNotifier) send(text string) {
	// Deliberately not bound to n.ctx: queued messages still go out during
	// the drain on shutdown. The client timeout caps the send instead.
	resp, err := n.client.R().
		SetFormData(map[string]string{
			"chat_id":    n.cfg.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/sendMessage")
	if err != nil {
		n.warn("telegram send failed", err.Error())
		return
	}
	if resp.IsError() {
		n.warn("telegram send rejected", resp.Status())
	}
}

func (n *TelegramNotifier) enqueue(text string) {
	select {
	case n.queue <- text:
	default:
		n.warn("telegram message dropped: queue full", "")
	}
}

func (n *TelegramNotifier) warn(msg, detail string) {
	if n.bus == nil {
		return
	}
	fields := map[string]any{}
	if detail != "" {
		fields["detail"] = detail
	}
	n.bus.Log("warn", msg, fields)
}

// TestConnection sends a probe message synchronously so the CLI can verify
// the bot token and chat id before a run.
func (n *TelegramNotifier) TestConnection(ctx context.Context) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    n.cfg.ChatID,
			"text":       "🧪 Connection test: notifications are working.",
			"parse_mode": "HTML",
		}).
		Post("/sendMessage")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errors.New("telegram API returned " + resp.Status())
	}
	return nil
}

func (n *TelegramNotifier) NotifyRunStarted(_ context.Context, targets []string) {
	var sb strings.Builder
	sb.WriteString("🚀 <b>KRS run started</b>\n\n🎯 Targets:\n")
	for _, code := range targets {
		fmt.Fprintf(&sb, "• <code>%s</code>\n", html.EscapeString(code))
	}
	sb.WriteString("\n⏳ Retrying every cycle until all targets are enrolled.")
	n.enqueue(sb.String())
}

func (n *TelegramNotifier) NotifyCourseRegistered(_ context.Context, code string) {
	n.enqueue(fmt.Sprintf(
		"✅ <b>Course registered</b>\n\n📚 <code>%s</code> is now in your KRS.",
		html.EscapeString(code)))
}

func (n *TelegramNotifier) NotifyAllCompleted(_ context.Context, codes []string, elapsed string) {
	var sb strings.Builder
	sb.WriteString("🎉 <b>All target courses registered!</b>\n\n")
	for _, code := range codes {
		fmt.Fprintf(&sb, "✅ <code>%s</code>\n", html.EscapeString(code))
	}
	if elapsed != "" {
		fmt.Fprintf(&sb, "\n⏱ Total time: %s", html.EscapeString(elapsed))
	}
	n.enqueue(sb.String())
}

func (n *TelegramNotifier) NotifyError(_ context.Context, message, code string) {
	text := "❌ <b>KRS run error</b>\n\n" + html.EscapeString(message)
	if code != "" {
		text += fmt.Sprintf("\n📚 Course: <code>%s</code>", html.EscapeString(code))
	}
	n.enqueue(text)
}

func (n *TelegramNotifier) NotifySessionExpired(_ context.Context) {
	n.enqueue("🔒 <b>Session expired</b>\n\nLog in to the portal again, update the cookies in your config or .env, then restart the run.")
}
