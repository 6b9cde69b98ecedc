package workflow

import (
	"context"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// Handler は RawRequest を 1 件処理し、記録された履歴エントリを返す責務を持ちます。
// Orchestrator、Retrier、Session がこれを満たします。
type Handler interface {
	Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error)
}

// ImageNormalizer は入力画像を正規形式に変換します。
type ImageNormalizer interface {
	Normalize(ctx context.Context, data []byte, declared string) (domain.NormalizedImage, error)
}

// PromptRefiner は RawRequest を指定系統のテンプレートで清書します。
type PromptRefiner interface {
	Refine(ctx context.Context, raw domain.RawRequest, family domain.TemplateFamily) (domain.RefinedPrompt, error)
}

// ImageAdapter は清書済みプロンプトで画像バックエンドを 1 回呼び出します。
type ImageAdapter interface {
	Generate(ctx context.Context, prompt domain.RefinedPrompt, count int) (domain.GenerationResult, error)
	Edit(ctx context.Context, prompt domain.RefinedPrompt, source domain.NormalizedImage, count int) (domain.GenerationResult, error)
}

// HistoryAppender は成功した操作を履歴に追記します。
type HistoryAppender interface {
	Append(mode domain.Mode, req domain.RawRequest, refined domain.RefinedPrompt, result domain.GenerationResult) (domain.HistoryEntry, error)
}

// PhaseObserver は Orchestrator の状態遷移を受け取ります。
type PhaseObserver interface {
	PhaseChanged(ctx context.Context, from, to domain.Phase)
}

// PhaseObserverFunc は関数を PhaseObserver として使うためのアダプタです。
type PhaseObserverFunc func(ctx context.Context, from, to domain.Phase)

// PhaseChanged は f(ctx, from, to) を呼び出します。
func (f PhaseObserverFunc) PhaseChanged(ctx context.Context, from, to domain.Phase) {
	f(ctx, from, to)
}
