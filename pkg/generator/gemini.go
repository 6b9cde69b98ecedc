package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// DefaultImageConcurrency は 1 リクエスト内で同時に発行する画像生成呼び出しの上限です。
	DefaultImageConcurrency = 1
	// DefaultImageInterval は画像生成呼び出しの最小間隔です。
	DefaultImageInterval = 2 * time.Second
)

// GeminiImageBackend は Gemini の画像モデルを使う ImageBackend です。
// Gemini の画像モデルは 1 回の呼び出しで複数候補を返せないため、
// Count 枚分の単発呼び出しを発行し、成功した呼び出しの画像をすべて呼び出し順に返します。
type GeminiImageBackend struct {
	client      ContentGenerator
	model       string
	limiter     *rate.Limiter
	concurrency int
}

// ImageBackendOption は GeminiImageBackend の設定を変更します。
type ImageBackendOption func(*GeminiImageBackend)

// WithRateLimit は呼び出し間隔とバースト数を設定します。interval が 0 以下なら制限しません。
func WithRateLimit(interval time.Duration, burst int) ImageBackendOption {
	return func(b *GeminiImageBackend) {
		if interval <= 0 {
			b.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithConcurrency は同時呼び出し数の上限を設定します。
func WithConcurrency(n int) ImageBackendOption {
	return func(b *GeminiImageBackend) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewGeminiImageBackend は GeminiImageBackend を初期化するのだ。
func NewGeminiImageBackend(client ContentGenerator, model string, opts ...ImageBackendOption) (*GeminiImageBackend, error) {
	if client == nil {
		return nil, errors.New("client (ContentGenerator) is required")
	}
	if model == "" {
		model = DefaultImageModel
	}

	b := &GeminiImageBackend{
		client:      client,
		model:       model,
		limiter:     rate.NewLimiter(rate.Every(DefaultImageInterval), DefaultImageConcurrency),
		concurrency: DefaultImageConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Render は req.Count 回の単発呼び出しを行い、得られた画像を呼び出し順に返すのだ。
// 一部の呼び出しが失敗しても成功分は返し、全滅した場合のみ最後のエラーを返すのだ。
func (b *GeminiImageBackend) Render(ctx context.Context, req RenderRequest) ([]domain.Image, error) {
	if req.Count < 1 {
		return nil, fmt.Errorf("invalid image count: %d", req.Count)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	if req.Source != nil {
		imgPart := ToPart(req.Source.Data, req.Source.Format.MIMEType())
		if imgPart == nil {
			return nil, fmt.Errorf("%w: source image cannot be attached", domain.ErrUnsupportedFormat)
		}
		parts = append(parts, imgPart)
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	slog.InfoContext(ctx, "Gemini画像リクエスト準備中",
		"model", b.model, "count", req.Count, "edit", req.Source != nil)

	results := make([][]domain.Image, req.Count)
	var (
		mu      sync.Mutex
		lastErr error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.concurrency)
	for i := 0; i < req.Count; i++ {
		eg.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(egCtx); err != nil {
					return err
				}
			}

			logger := slog.With("image_index", i+1, "model", b.model)
			startTime := time.Now()

			resp, err := b.client.GenerateContent(egCtx, b.model, contents, config)
			if err == nil {
				var images []domain.Image
				images, err = ParseImages(resp)
				if err == nil {
					results[i] = images
					logger.DebugContext(egCtx, "画像生成が完了しました",
						"images", len(images), "duration", time.Since(startTime).Round(time.Millisecond))
					return nil
				}
			}
			if ctxErr := egCtx.Err(); ctxErr != nil {
				return ctxErr
			}

			// 単発の失敗はスキップして残りを続行する
			logger.WarnContext(egCtx, "画像生成に失敗しました", "error", err)
			mu.Lock()
			lastErr = fmt.Errorf("image %d: %w", i+1, err)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	images := make([]domain.Image, 0, req.Count)
	for _, got := range results {
		images = append(images, got...)
	}
	if len(images) > req.Count {
		slog.InfoContext(ctx, "要求より多くの画像が返されました", "requested", req.Count, "returned", len(images))
	}
	if len(images) == 0 && lastErr != nil {
		return nil, fmt.Errorf("Gemini画像生成エラー: %w", lastErr)
	}
	return images, nil
}
