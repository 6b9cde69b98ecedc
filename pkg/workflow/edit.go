package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// EditController は元画像付きリクエストを 正規化 → 清書（編集系統）→ 編集 の順に処理します。
type EditController struct {
	normalizer ImageNormalizer
	refiner    PromptRefiner
	adapter    ImageAdapter
}

// NewEditController は EditController を初期化します。
func NewEditController(normalizer ImageNormalizer, refiner PromptRefiner, adapter ImageAdapter) (*EditController, error) {
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if refiner == nil {
		return nil, errors.New("refiner is required")
	}
	if adapter == nil {
		return nil, errors.New("adapter is required")
	}
	return &EditController{normalizer: normalizer, refiner: refiner, adapter: adapter}, nil
}

// RunEdit は編集フローを実行します。raw は編集モードに解決される必要があります。
func (c *EditController) RunEdit(ctx context.Context, raw domain.RawRequest) (domain.GenerationResult, error) {
	if err := raw.Validate(); err != nil {
		return domain.GenerationResult{}, err
	}
	mode, err := raw.ResolveMode()
	if err != nil {
		return domain.GenerationResult{}, err
	}
	if mode != domain.ModeEdit {
		return domain.GenerationResult{}, fmt.Errorf("%w: edit workflow requires a source image", domain.ErrInvalidRequest)
	}
	return c.run(ctx, raw, nil)
}

// run はモード確定済みのリクエストを処理します。エラーは加工せずに返します。
func (c *EditController) run(ctx context.Context, raw domain.RawRequest, tracker *phaseTracker) (domain.GenerationResult, error) {
	tracker.to(ctx, domain.PhaseRefining)

	// 形式エラーは清書やバックエンドを呼ぶ前に確定させる
	source, err := c.normalizer.Normalize(ctx, raw.SourceImage, raw.SourceMIME)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	slog.DebugContext(ctx, "編集元画像を正規化しました", "source_format", source.SourceFormat, "bytes", len(source.Data))

	refined, err := c.refiner.Refine(ctx, raw, domain.FamilyEdit)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	tracker.to(ctx, domain.PhaseEditing)
	return c.adapter.Edit(ctx, refined, source, raw.OutputCount)
}
