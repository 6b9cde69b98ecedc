package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_Handle(t *testing.T) {
	ctx := context.Background()
	backendErr := &domain.BackendError{Reason: domain.ReasonCallFailed, Err: errors.New("503")}

	t.Run("既定(0回)では1回だけ実行すること", func(t *testing.T) {
		h := &mockHandler{errs: []error{backendErr}}
		r, err := NewRetrier(h, 0, time.Millisecond)
		require.NoError(t, err)

		_, err = r.Handle(ctx, generateRequest())
		assert.ErrorIs(t, err, backendErr)
		assert.Equal(t, 1, h.calls)
	})

	t.Run("再試行可能なエラーは上限まで再実行すること", func(t *testing.T) {
		h := &mockHandler{errs: []error{domain.ErrRefinementFailed, backendErr}}
		r, _ := NewRetrier(h, 3, time.Millisecond)

		entry, err := r.Handle(ctx, generateRequest())
		require.NoError(t, err)
		assert.Equal(t, 3, h.calls)
		assert.Equal(t, int64(3), entry.ID)
	})

	t.Run("上限に達したら最後のエラーを返すこと", func(t *testing.T) {
		h := &mockHandler{errs: []error{backendErr, backendErr, backendErr}}
		r, _ := NewRetrier(h, 2, time.Millisecond)

		_, err := r.Handle(ctx, generateRequest())
		var be *domain.BackendError
		assert.True(t, errors.As(err, &be))
		assert.Equal(t, 3, h.calls)
	})

	t.Run("再試行不可能なエラーは即座に返すこと", func(t *testing.T) {
		h := &mockHandler{errs: []error{domain.ErrUnsupportedFormat}}
		r, _ := NewRetrier(h, 5, time.Millisecond)

		_, err := r.Handle(ctx, generateRequest())
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Equal(t, 1, h.calls)
	})

	t.Run("期限切れのコンテキストでも分類済みのエラーを返すこと", func(t *testing.T) {
		expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()
		timeoutErr := &domain.BackendError{Reason: domain.ReasonTimeout, Err: context.DeadlineExceeded}
		h := &mockHandler{errs: []error{timeoutErr, timeoutErr}}
		r, _ := NewRetrier(h, 0, time.Millisecond)

		_, err := r.Handle(expired, generateRequest())
		var be *domain.BackendError
		require.True(t, errors.As(err, &be))
		assert.True(t, be.IsTimeout())
		assert.Equal(t, 1, h.calls)
	})

	t.Run("キャンセル後の再試行待ちでも最後のエラーを返すこと", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		h := &cancelingHandler{cancel: cancel, err: domain.ErrRefinementFailed}
		r, _ := NewRetrier(h, 3, time.Hour)

		_, err := r.Handle(cctx, generateRequest())
		assert.ErrorIs(t, err, domain.ErrRefinementFailed)
		assert.NotErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, h.calls)
	})

	t.Run("handlerは必須であること", func(t *testing.T) {
		_, err := NewRetrier(nil, 1, 0)
		assert.EqualError(t, err, "handler is required")
	})
}

// cancelingHandler は呼ばれるたびに ctx をキャンセルしてから err を返します。
type cancelingHandler struct {
	cancel context.CancelFunc
	err    error
	calls  int
}

func (h *cancelingHandler) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	h.calls++
	h.cancel()
	return domain.HistoryEntry{}, h.err
}
