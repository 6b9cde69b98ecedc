package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// Adapter は RefinedPrompt を画像バックエンドへの 1 回の呼び出しに変換し、
// 結果を domain.GenerationResult に詰め替えます。
// バックエンドが返した画像は切り詰めも水増しもせず、そのまま返します。
type Adapter struct {
	backend ImageBackend
	timeout time.Duration
}

// NewAdapter は Adapter を初期化します。timeout が 0 以下なら DefaultImageTimeout を使います。
func NewAdapter(backend ImageBackend, timeout time.Duration) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("image backend is required")
	}
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	return &Adapter{backend: backend, timeout: timeout}, nil
}

// Generate はテキストのみから count 枚の画像を生成します。
func (a *Adapter) Generate(ctx context.Context, prompt domain.RefinedPrompt, count int) (domain.GenerationResult, error) {
	return a.render(ctx, prompt, nil, count)
}

// Edit は正規化済みの元画像を prompt に従って編集します。
// 正規形式でない画像は呼び出し前に拒否します。
func (a *Adapter) Edit(ctx context.Context, prompt domain.RefinedPrompt, source domain.NormalizedImage, count int) (domain.GenerationResult, error) {
	if !source.IsCanonical() || len(source.Data) == 0 {
		return domain.GenerationResult{}, fmt.Errorf("%w: edit source must be a normalized %s image", domain.ErrUnsupportedFormat, domain.CanonicalFormat)
	}
	return a.render(ctx, prompt, &source, count)
}

func (a *Adapter) render(ctx context.Context, prompt domain.RefinedPrompt, source *domain.NormalizedImage, count int) (domain.GenerationResult, error) {
	if count < 1 || count > domain.MaxOutputCount {
		return domain.GenerationResult{}, fmt.Errorf("%w: output count must be between 1 and %d, got %d", domain.ErrInvalidRequest, domain.MaxOutputCount, count)
	}
	if prompt.Text == "" {
		return domain.GenerationResult{}, fmt.Errorf("%w: refined prompt is empty", domain.ErrInvalidRequest)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	images, err := a.backend.Render(callCtx, RenderRequest{
		Instruction: prompt.Text,
		Source:      source,
		Count:       count,
	})
	latency := time.Since(start)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.GenerationResult{}, &domain.BackendError{
				Reason: domain.ReasonTimeout,
				Err:    fmt.Errorf("no response within %s: %w", a.timeout, err),
			}
		}
		return domain.GenerationResult{}, &domain.BackendError{Reason: domain.ReasonCallFailed, Err: err}
	}
	if len(images) == 0 {
		return domain.GenerationResult{}, &domain.BackendError{Reason: domain.ReasonNoImages}
	}

	result := domain.GenerationResult{
		Images:         images,
		Requested:      count,
		BackendLatency: latency,
		Prompt:         prompt,
	}
	if result.Partial() {
		slog.WarnContext(ctx, "要求枚数に満たない画像が返されました",
			"requested", count, "returned", len(images), "family", prompt.Family)
	}
	slog.InfoContext(ctx, "画像バックエンド呼び出しが完了しました",
		"family", prompt.Family, "images", len(images), "latency", latency)
	return result, nil
}
