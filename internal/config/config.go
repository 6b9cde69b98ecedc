package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義
const (
	DefaultTextModel      = "gemini-2.5-flash"
	DefaultImageModel     = "gemini-2.5-flash-image"
	DefaultTextTimeout    = 30 * time.Second
	DefaultImageTimeout   = 120 * time.Second
	DefaultImageInterval  = 2 * time.Second
	DefaultConcurrency    = 1
	DefaultMaxRetries     = 0
	DefaultRetryInterval  = 2 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
	DefaultNormalizeTTL   = 10 * time.Minute
	DefaultTemperature    = 0.7
	DefaultListenAddr     = ":8080"
	DefaultOutputDir      = "output"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMaxUploadBytes = 20 << 20
	DefaultMaxImagePixels = 40_000_000
)

// Config はアプリケーション全体の環境設定を保持する構造体です。
type Config struct {
	GeminiAPIKey  string
	TextModel     string
	ImageModel    string
	TemplatesFile string // 空なら埋め込みテンプレートを使う

	TextTimeout   time.Duration
	ImageTimeout  time.Duration
	ImageInterval time.Duration
	Concurrency   int
	Temperature   float32

	MaxRetries    int
	RetryInterval time.Duration

	SessionTTL     time.Duration
	NormalizeTTL   time.Duration
	ListenAddr     string
	MaxUploadBytes int64
	MaxImagePixels int
	OutputDir      string

	LogLevel  string
	LogFormat string
}

// LoadDotEnv は .env.local と .env が存在すれば読み込みます。既存の環境変数は上書きしません。
func LoadDotEnv() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn(".env ファイルの読み込みに失敗しました", "file", file, "error", err)
		}
	}
}

// LoadConfig は環境変数から設定を読み込み、検証済みの構造体を返します。
func LoadConfig() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:  envutil.GetEnv("GEMINI_API_KEY", ""),
		TextModel:     envutil.GetEnv("TEXT_MODEL", DefaultTextModel),
		ImageModel:    envutil.GetEnv("IMAGE_MODEL", DefaultImageModel),
		TemplatesFile: envutil.GetEnv("PROMPT_TEMPLATES_FILE", ""),
		ListenAddr:    envutil.GetEnv("LISTEN_ADDR", DefaultListenAddr),
		OutputDir:     envutil.GetEnv("OUTPUT_DIR", DefaultOutputDir),
		LogLevel:      envutil.GetEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:     envutil.GetEnv("LOG_FORMAT", DefaultLogFormat),
	}

	var err error
	if cfg.TextTimeout, err = durationEnv("TEXT_TIMEOUT", DefaultTextTimeout); err != nil {
		return nil, err
	}
	if cfg.ImageTimeout, err = durationEnv("BACKEND_TIMEOUT", DefaultImageTimeout); err != nil {
		return nil, err
	}
	if cfg.ImageInterval, err = durationEnv("IMAGE_RATE_INTERVAL", DefaultImageInterval); err != nil {
		return nil, err
	}
	if cfg.RetryInterval, err = durationEnv("RETRY_INTERVAL", DefaultRetryInterval); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", DefaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.NormalizeTTL, err = durationEnv("NORMALIZE_CACHE_TTL", DefaultNormalizeTTL); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = intEnv("IMAGE_CONCURRENCY", DefaultConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = intEnv("MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}
	maxUpload, err := intEnv("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.MaxImagePixels, err = intEnv("MAX_IMAGE_PIXELS", DefaultMaxImagePixels); err != nil {
		return nil, err
	}

	temperature, err := strconv.ParseFloat(envutil.GetEnv("TEXT_TEMPERATURE", strconv.FormatFloat(DefaultTemperature, 'f', -1, 64)), 32)
	if err != nil {
		return nil, fmt.Errorf("環境変数 TEXT_TEMPERATURE が不正です: %w", err)
	}
	cfg.Temperature = float32(temperature)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は値の範囲を検証します。API キーの有無は RequireAPIKey で別途確認します。
func (c *Config) Validate() error {
	if c.TextTimeout <= 0 || c.ImageTimeout <= 0 {
		return fmt.Errorf("タイムアウトは正の値である必要があります (text=%s, image=%s)", c.TextTimeout, c.ImageTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("IMAGE_CONCURRENCY は 1 以上である必要があります: %d", c.Concurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES は 0 以上である必要があります: %d", c.MaxRetries)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEXT_TEMPERATURE は 0 から 2 の範囲で指定してください: %v", c.Temperature)
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS は 0 以上である必要があります: %d", c.MaxImagePixels)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES は正の値である必要があります: %d", c.MaxUploadBytes)
	}
	return nil
}

// RequireAPIKey は Gemini API キーが設定されているかを確認します。
func (c *Config) RequireAPIKey() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須です")
	}
	return nil
}

// NewLogger は LogLevel と LogFormat に従って slog.Logger を作成します。
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("不正なログレベルです: %q", level)
	}
	opts := &slog.HandlerOptions{Level: lv}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("不正なログ形式です: %q (text か json を指定してください)", format)
	}
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := envutil.GetEnv(key, def.String())
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が不正です: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := envutil.GetEnv(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が不正です: %w", key, err)
	}
	return n, nil
}
