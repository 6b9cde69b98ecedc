package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shouni/gemini-prompt-kit/internal/config"

	"github.com/spf13/cobra"
)

// appOptions はコマンドラインから指定される値をまとめたものなのだ。
type appOptions struct {
	TextModel    string
	ImageModel   string
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	MaxRetries   int
	Verbose      bool

	Text        string
	Domain      string
	Style       string
	Count       int
	ImagePath   string
	OutputDir   string
	Format      string
	JPEGQuality int

	ListenAddr string
}

var (
	opts appOptions
	cfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gemini-prompt",
	Short: "短いアイデアを業務向けプロンプトに清書して画像を生成・編集するのだ。",
	Long: `ユーザーの短い入力をドメイン別テンプレートで詳細なプロンプトに清書し、
Gemini で画像を生成・編集するのだ。HTTP API としても起動できるのだよ。`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.TextModel, "model", config.DefaultTextModel, "プロンプト清書に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.TextTimeout, "text-timeout", config.DefaultTextTimeout, "清書呼び出しのタイムアウトなのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.ImageTimeout, "image-timeout", config.DefaultImageTimeout, "画像バックエンド呼び出しのタイムアウトなのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxRetries, "max-retries", config.DefaultMaxRetries, "失敗時に再試行する回数なのだ（0 で再試行しない）。")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "デバッグログを出力するのだ。")

	rootCmd.AddCommand(generateCmd, editCmd, serveCmd)
}

// preRunAppE は .env と環境変数から設定を読み込み、フラグで上書きしてロガーを初期化するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()

	loaded, err := config.LoadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(os.Stderr, loaded.LogLevel, loaded.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if err := loaded.RequireAPIKey(); err != nil {
		return fmt.Errorf("エラー: %w", err)
	}
	cfg = loaded
	return nil
}

// applyFlags は明示的に指定されたフラグだけを設定に反映するのだ。
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		c.TextModel = opts.TextModel
	}
	if flags.Changed("image-model") {
		c.ImageModel = opts.ImageModel
	}
	if flags.Changed("text-timeout") {
		c.TextTimeout = opts.TextTimeout
	}
	if flags.Changed("image-timeout") {
		c.ImageTimeout = opts.ImageTimeout
	}
	if flags.Changed("max-retries") {
		c.MaxRetries = opts.MaxRetries
	}
	if flags.Changed("output-dir") {
		c.OutputDir = opts.OutputDir
	}
	if flags.Changed("addr") {
		c.ListenAddr = opts.ListenAddr
	}
	if opts.Verbose {
		c.LogLevel = "debug"
	}
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
