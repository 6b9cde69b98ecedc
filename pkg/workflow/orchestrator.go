package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"github.com/google/uuid"
)

// Orchestrator は 1 リクエストを検証し、生成または編集フローに振り分け、成功時のみ履歴に記録します。
// 内部ではリトライしません。再試行は Retrier で包んで行います。
type Orchestrator struct {
	refiner  PromptRefiner
	adapter  ImageAdapter
	editor   *EditController
	store    HistoryAppender
	observer PhaseObserver
}

// Option は Orchestrator の設定を変更します。
type Option func(*Orchestrator)

// WithPhaseObserver は状態遷移の通知先を設定します。
func WithPhaseObserver(observer PhaseObserver) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// NewOrchestrator は依存関係を注入して Orchestrator を初期化します。
func NewOrchestrator(normalizer ImageNormalizer, refiner PromptRefiner, adapter ImageAdapter, store HistoryAppender, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("history store is required")
	}
	editor, err := NewEditController(normalizer, refiner, adapter)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		refiner: refiner,
		adapter: adapter,
		editor:  editor,
		store:   store,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Handle は raw を処理して履歴エントリを返します。
// 失敗時は何も記録せず、下位コンポーネントのエラーをそのまま返します。
func (o *Orchestrator) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	logger := slog.With("request_id", uuid.NewString(), "domain", raw.Domain, "style", raw.Style)
	tracker := newPhaseTracker(o.observer, logger)
	start := time.Now()

	if err := raw.Validate(); err != nil {
		logger.WarnContext(ctx, "リクエストが不正です", "error", err)
		return domain.HistoryEntry{}, tracker.fail(ctx, err)
	}
	// モードはここで一度だけ確定させる
	mode, err := raw.ResolveMode()
	if err != nil {
		return domain.HistoryEntry{}, tracker.fail(ctx, err)
	}
	family := domain.FamilyFor(mode)
	logger = logger.With("mode", mode, "family", family)
	tracker.logger = logger

	var result domain.GenerationResult
	switch family {
	case domain.FamilyEdit:
		result, err = o.editor.run(ctx, raw, tracker)
	default:
		result, err = o.generate(ctx, raw, family, tracker)
	}
	if err != nil {
		logger.ErrorContext(ctx, "リクエストの処理に失敗しました", "error", err, "elapsed", time.Since(start))
		return domain.HistoryEntry{}, tracker.fail(ctx, err)
	}

	entry, err := o.store.Append(mode, raw, result.Prompt, result)
	if err != nil {
		return domain.HistoryEntry{}, tracker.fail(ctx, err)
	}
	tracker.to(ctx, domain.PhaseCommitted)

	logger.InfoContext(ctx, "リクエストを処理しました",
		"entry_id", entry.ID,
		"images", len(result.Images),
		"requested", result.Requested,
		"partial", result.Partial(),
		"elapsed", time.Since(start),
	)
	return entry, nil
}

func (o *Orchestrator) generate(ctx context.Context, raw domain.RawRequest, family domain.TemplateFamily, tracker *phaseTracker) (domain.GenerationResult, error) {
	tracker.to(ctx, domain.PhaseRefining)
	refined, err := o.refiner.Refine(ctx, raw, family)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	tracker.to(ctx, domain.PhaseGenerating)
	return o.adapter.Generate(ctx, refined, raw.OutputCount)
}
