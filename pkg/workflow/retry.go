package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryInitialInterval = 2 * time.Second
	DefaultRetryMaxInterval     = 30 * time.Second
)

// Retrier は Handler を包み、再試行可能なエラー (RefinementFailed, BackendError) のときだけ
// 指数バックオフで再実行する呼び出し側のポリシーです。maxRetries が 0 なら 1 回だけ実行します。
type Retrier struct {
	next            Handler
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewRetrier は Retrier を初期化します。initialInterval が 0 以下なら既定値を使います。
func NewRetrier(next Handler, maxRetries int, initialInterval time.Duration) (*Retrier, error) {
	if next == nil {
		return nil, errors.New("handler is required")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialInterval <= 0 {
		initialInterval = DefaultRetryInitialInterval
	}
	maxInterval := DefaultRetryMaxInterval
	if initialInterval > maxInterval {
		maxInterval = initialInterval
	}
	return &Retrier{
		next:            next,
		maxRetries:      uint64(maxRetries),
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
	}, nil
}

// Handle は next.Handle を実行し、必要に応じて再試行します。
func (r *Retrier) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = 0 // 回数で打ち切る

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)

	var (
		entry   domain.HistoryEntry
		lastErr error
	)
	attempt := 0
	operation := func() error {
		attempt++
		e, err := r.next.Handle(ctx, raw)
		if err != nil {
			lastErr = err
			if !domain.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		entry = e
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "リクエストを再試行します", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		// ctx 切れのとき backoff は ctx.Err() を返すため、分類済みのエラーを優先する
		if lastErr != nil && ctx.Err() != nil {
			return domain.HistoryEntry{}, lastErr
		}
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}
