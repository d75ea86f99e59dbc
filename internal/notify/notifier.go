package notify

import "context"

// Notifier receives discrete loop events. Implementations must be
// fire-and-forget: a notification failure is logged at most and never
// surfaces back into the registration loop.
type Notifier interface {
	NotifyRunStarted(ctx context.Context, targets []string)
	NotifyCourseRegistered(ctx context.Context, code string)
	NotifyAllCompleted(ctx context.Context, codes []string, elapsed string)
	NotifyError(ctx context.Context, message, code string)
	NotifySessionExpired(ctx context.Context)
}

// Multi fans events out to several channels.
type Multi []Notifier

func (m Multi) NotifyRunStarted(ctx context.Context, targets []string) {
	for _, n := range m {
		n.NotifyRunStarted(ctx, targets)
	}
}

func (m Multi) NotifyCourseRegistered(ctx context.Context, code string) {
	for _, n := range m {
		n.NotifyCourseRegistered(ctx, code)
	}
}

func (m Multi) NotifyAllCompleted(ctx context.Context, codes []string, elapsed string) {
	for _, n := range m {
		n.NotifyAllCompleted(ctx, codes, elapsed)
	}
}

func (m Multi) NotifyError(ctx context.Context, message, code string) {
	for _, n := range m {
		n.NotifyError(ctx, message, code)
	}
}

func (m Multi) NotifySessionExpired(ctx context.Context) {
	for _, n := range m {
		n.NotifySessionExpired(ctx)
	}
}
