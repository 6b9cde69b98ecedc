package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// DefaultRefineTimeout はテキストバックエンド呼び出しの既定タイムアウトです。
const DefaultRefineTimeout = 30 * time.Second

// TextGenerator はメタ指示からテキストを生成するバックエンドです。
type TextGenerator interface {
	Complete(ctx context.Context, instruction string) (string, error)
}

// Refiner はユーザーの短い入力を、ドメインテンプレートに沿った詳細な指示文に変換します。
type Refiner struct {
	gen       TextGenerator
	templates *TemplateSet
	timeout   time.Duration
}

// NewRefiner は Refiner を初期化します。timeout が 0 以下なら DefaultRefineTimeout を使います。
func NewRefiner(gen TextGenerator, templates *TemplateSet, timeout time.Duration) (*Refiner, error) {
	if gen == nil {
		return nil, errors.New("text generator is required")
	}
	if templates == nil {
		return nil, errors.New("template set is required")
	}
	if timeout <= 0 {
		timeout = DefaultRefineTimeout
	}
	return &Refiner{gen: gen, templates: templates, timeout: timeout}, nil
}

// Refine は raw を family 系統のテンプレートで清書します。
// テキストバックエンドへの呼び出しは 1 回だけで、失敗や空応答は domain.ErrRefinementFailed になります。
func (r *Refiner) Refine(ctx context.Context, raw domain.RawRequest, family domain.TemplateFamily) (domain.RefinedPrompt, error) {
	if !raw.Domain.Valid() {
		return domain.RefinedPrompt{}, fmt.Errorf("%w: unknown domain %q", domain.ErrInvalidRequest, raw.Domain)
	}
	if !raw.Style.Valid() {
		return domain.RefinedPrompt{}, fmt.Errorf("%w: unknown style %q", domain.ErrInvalidRequest, raw.Style)
	}
	userText := Sanitize(raw.UserText)
	if userText == "" {
		return domain.RefinedPrompt{}, fmt.Errorf("%w: user text is empty", domain.ErrInvalidRequest)
	}

	instruction, err := r.templates.Instruction(family, raw.Domain, raw.Style, userText)
	if err != nil {
		return domain.RefinedPrompt{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.gen.Complete(callCtx, instruction)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.RefinedPrompt{}, fmt.Errorf("%w: text backend timed out after %s: %w", domain.ErrRefinementFailed, r.timeout, err)
		}
		return domain.RefinedPrompt{}, fmt.Errorf("%w: %w", domain.ErrRefinementFailed, err)
	}

	expansion := cleanExpansion(out)
	if expansion == "" {
		return domain.RefinedPrompt{}, fmt.Errorf("%w: text backend returned an empty expansion", domain.ErrRefinementFailed)
	}

	text, err := r.templates.Render(family, raw.Domain, raw.Style, expansion)
	if err != nil {
		return domain.RefinedPrompt{}, err
	}

	slog.DebugContext(ctx, "プロンプトを清書しました",
		"domain", raw.Domain,
		"style", raw.Style,
		"family", family,
		"elapsed", time.Since(start),
		"expansion_runes", len([]rune(expansion)),
	)

	origin := raw
	origin.SourceImage = nil // 画像本体は履歴側で保持する
	return domain.RefinedPrompt{
		Text:        text,
		Domain:      raw.Domain,
		Style:       raw.Style,
		Family:      family,
		Expansion:   expansion,
		DerivedFrom: &origin,
	}, nil
}
