package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-prompt-kit/internal/config"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
	"github.com/shouni/gemini-prompt-kit/pkg/history"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
	"github.com/shouni/gemini-prompt-kit/pkg/prompt"
	"github.com/shouni/gemini-prompt-kit/pkg/workflow"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"
)

// App は、アプリケーション実行に必要な共有コンポーネントを保持します。
// Normalizer、Refiner、Adapter は状態を持たないため全セッションで共有します。
type App struct {
	Config     *config.Config
	Normalizer *imgutil.Normalizer
	Refiner    *prompt.Refiner
	Adapter    *generator.Adapter
	Sessions   *workflow.Sessions
	observer   workflow.PhaseObserver
}

// Option は App の構築を調整します。
type Option func(*App)

// WithPhaseObserver は全セッションの Orchestrator に状態遷移の通知先を設定します。
func WithPhaseObserver(observer workflow.PhaseObserver) Option {
	return func(a *App) {
		a.observer = observer
	}
}

// InitializeGenAIClient は Gemini API 用の genai クライアントを初期化します。
func InitializeGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

// BuildApp は設定から genai クライアントと Gemini バックエンドを作成し、App を構築します。
func BuildApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	client, err := InitializeGenAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	textBackend, err := generator.NewGeminiTextBackend(client.Models, cfg.TextModel, cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("テキストバックエンドの初期化に失敗しました: %w", err)
	}
	imageBackend, err := generator.NewGeminiImageBackend(client.Models, cfg.ImageModel,
		generator.WithConcurrency(cfg.Concurrency),
		generator.WithRateLimit(cfg.ImageInterval, cfg.Concurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("画像バックエンドの初期化に失敗しました: %w", err)
	}

	return BuildWithBackends(cfg, textBackend, imageBackend, opts...)
}

// BuildWithBackends は任意のバックエンドからパイプラインを組み立てます。
func BuildWithBackends(cfg *config.Config, text prompt.TextGenerator, image generator.ImageBackend, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	templates, err := loadTemplates(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}
	refiner, err := prompt.NewRefiner(text, templates, cfg.TextTimeout)
	if err != nil {
		return nil, fmt.Errorf("Refinerの初期化に失敗しました: %w", err)
	}
	adapter, err := generator.NewAdapter(image, cfg.ImageTimeout)
	if err != nil {
		return nil, fmt.Errorf("Adapterの初期化に失敗しました: %w", err)
	}

	normalizeCache := cache.New(cfg.NormalizeTTL, cfg.NormalizeTTL*2)

	app := &App{
		Config:     cfg,
		Normalizer: imgutil.NewNormalizer(normalizeCache, cfg.NormalizeTTL, imgutil.WithMaxPixels(cfg.MaxImagePixels)),
		Refiner:    refiner,
		Adapter:    adapter,
	}
	for _, opt := range opts {
		opt(app)
	}

	sessions, err := workflow.NewSessions(app.NewHandler, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	app.Sessions = sessions
	return app, nil
}

// NewHandler は store に書き込む Orchestrator を作成し、リトライポリシーで包んで返します。
func (a *App) NewHandler(store *history.Store) (workflow.Handler, error) {
	var opts []workflow.Option
	if a.observer != nil {
		opts = append(opts, workflow.WithPhaseObserver(a.observer))
	}
	orchestrator, err := workflow.NewOrchestrator(a.Normalizer, a.Refiner, a.Adapter, store, opts...)
	if err != nil {
		return nil, err
	}
	return workflow.NewRetrier(orchestrator, a.Config.MaxRetries, a.Config.RetryInterval)
}

func loadTemplates(path string) (*prompt.TemplateSet, error) {
	if path == "" {
		return prompt.DefaultTemplates()
	}
	slog.Info("外部テンプレートを読み込みます", "file", path)
	return prompt.LoadTemplateFile(path)
}
