package workflow

import (
	"context"
	"log/slog"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// phaseTracker は 1 リクエスト分の状態遷移を記録し、observer に通知します。
type phaseTracker struct {
	current  domain.Phase
	observer PhaseObserver
	logger   *slog.Logger
}

func newPhaseTracker(observer PhaseObserver, logger *slog.Logger) *phaseTracker {
	return &phaseTracker{current: domain.PhaseIdle, observer: observer, logger: logger}
}

func (t *phaseTracker) to(ctx context.Context, next domain.Phase) {
	if t == nil || t.current == next || t.current.Terminal() {
		return
	}
	from := t.current
	t.current = next
	t.logger.DebugContext(ctx, "状態が遷移しました", "from", from, "to", next)
	if t.observer != nil {
		t.observer.PhaseChanged(ctx, from, next)
	}
}

// fail は Failed へ遷移し、err をそのまま返します。
func (t *phaseTracker) fail(ctx context.Context, err error) error {
	t.to(ctx, domain.PhaseFailed)
	return err
}
