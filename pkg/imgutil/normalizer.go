package imgutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxPixels はデコードを許可する最大画素数です（解凍爆弾対策）。
	DefaultMaxPixels   = 40_000_000
	cacheKeyNormalized = "normalized:"
)

// ImageCacher は正規化結果をキャッシュするためのインターフェースです。
// github.com/patrickmn/go-cache の *cache.Cache がそのまま満たします。
type ImageCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

// Normalizer はアップロードされた任意の画像を正規形式 (PNG) に変換します。
// 純粋な変換なので、同じ入力に対する結果はキャッシュして再利用します。
type Normalizer struct {
	cache     ImageCacher
	cacheTTL  time.Duration
	maxPixels int
	group     singleflight.Group
}

// Option は Normalizer の設定を変更します。
type Option func(*Normalizer)

// WithMaxPixels はデコードを許可する最大画素数を設定します。
func WithMaxPixels(n int) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxPixels = n
		}
	}
}

// NewNormalizer は Normalizer を初期化します。cache は nil を許容します（キャッシュなし動作）。
func NewNormalizer(cache ImageCacher, cacheTTL time.Duration, opts ...Option) *Normalizer {
	n := &Normalizer{
		cache:     cache,
		cacheTTL:  cacheTTL,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize は画像データを正規形式に変換します。
// declared は申告された形式（MIME タイプまたは形式名）で、空なら内容から判定します。
// 既に PNG の入力はバイト列をそのまま返すため、正規化は冪等です。
func (n *Normalizer) Normalize(ctx context.Context, data []byte, declared string) (domain.NormalizedImage, error) {
	if len(data) == 0 {
		return domain.NormalizedImage{}, fmt.Errorf("%w: empty image data", domain.ErrUnsupportedFormat)
	}
	declaredFormat, ok := domain.ParseImageFormat(declared)
	if !ok {
		return domain.NormalizedImage{}, fmt.Errorf("%w: declared format %q", domain.ErrUnsupportedFormat, declared)
	}

	key := cacheKeyNormalized + digest(data)
	if n.cache != nil {
		if cached, found := n.cache.Get(key); found {
			if img, ok := cached.(domain.NormalizedImage); ok {
				return img, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "key", key, "type", fmt.Sprintf("%T", cached))
		}
	}

	v, err, _ := n.group.Do(key, func() (any, error) {
		return n.normalize(data)
	})
	if err != nil {
		return domain.NormalizedImage{}, err
	}
	img := v.(domain.NormalizedImage)

	if declaredFormat != "" && declaredFormat != img.SourceFormat {
		slog.DebugContext(ctx, "申告された形式と実際の形式が異なります",
			"declared", declaredFormat, "detected", img.SourceFormat)
	}
	if n.cache != nil {
		n.cache.Set(key, img, n.cacheTTL)
	}

	slog.DebugContext(ctx, "画像を正規化しました",
		"source_format", img.SourceFormat, "in_bytes", len(data), "out_bytes", len(img.Data))
	return img, nil
}

func (n *Normalizer) normalize(data []byte) (domain.NormalizedImage, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.NormalizedImage{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	source, ok := domain.ParseImageFormat(name)
	if !ok {
		return domain.NormalizedImage{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > n.maxPixels {
		return domain.NormalizedImage{}, fmt.Errorf("%w: image dimensions %dx%d exceed the limit", domain.ErrUnsupportedFormat, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.NormalizedImage{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}

	if source == domain.CanonicalFormat {
		// 呼び出し元のバッファはキャッシュに残さない
		return domain.NormalizedImage{Format: domain.CanonicalFormat, Data: bytes.Clone(data), SourceFormat: source}, nil
	}

	out, err := EncodePNG(img)
	if err != nil {
		return domain.NormalizedImage{}, err
	}
	return domain.NormalizedImage{Format: domain.CanonicalFormat, Data: out, SourceFormat: source}, nil
}

// EncodePNG は画像を PNG にエンコードします。
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("PNGエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectFormat は画像データの形式を判定します。
func DetectFormat(data []byte) (domain.ImageFormat, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	f, ok := domain.ParseImageFormat(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}
	return f, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
