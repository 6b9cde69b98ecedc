package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/gemini-prompt-kit/internal/builder"
	"github.com/shouni/gemini-prompt-kit/internal/config"
	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"

	"github.com/spf13/cobra"
)

// generateCmd は、テキストだけから画像を生成するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "アイデアを清書して画像を生成するのだ。",
	Long: `--text のアイデアを --domain のテンプレートで清書し、--count 枚の画像を生成するのだ。
清書されたプロンプトは標準出力に、画像は --output-dir に保存するのだよ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd.Context(), domain.ModeGenerate, nil, "")
	},
}

// editCmd は、既存の画像を指示に沿って編集するのだ。
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "画像を編集指示に沿って編集するのだ。",
	Long: `--image の画像を正規化し、--text の編集指示を編集用テンプレートで清書してから編集するのだ。
WebP や BMP などの画像も PNG に変換してから送るのだよ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if opts.ImagePath == "" {
			return fmt.Errorf("編集する画像（--image）を指定してほしいのだ")
		}
		data, err := os.ReadFile(opts.ImagePath)
		if err != nil {
			return fmt.Errorf("画像ファイルの読み込みに失敗したのだ: %w", err)
		}
		return runRequest(cmd.Context(), domain.ModeEdit, data, filepath.Ext(opts.ImagePath))
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, editCmd} {
		c.Flags().StringVarP(&opts.Text, "text", "t", "", "アイデアまたは編集指示なのだ（必須）。")
		c.Flags().StringVarP(&opts.Domain, "domain", "d", string(domain.DomainMarketing), "marketing, hr, business, design, education のいずれかなのだ。")
		c.Flags().StringVarP(&opts.Style, "style", "s", "", "cinematic, minimalist, vector, photorealistic, watercolor のいずれか（省略可）なのだ。")
		c.Flags().IntVarP(&opts.Count, "count", "n", 1, fmt.Sprintf("生成する枚数なのだ（1〜%d）。", domain.MaxOutputCount))
		c.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "画像を保存するディレクトリなのだ。")
		c.Flags().StringVar(&opts.Format, "format", "", "保存形式 (png / jpeg) なのだ。省略時は受け取った形式のままなのだ。")
		c.Flags().IntVar(&opts.JPEGQuality, "jpeg-quality", imgutil.DefaultJPEGQuality, "JPEG で保存するときの品質なのだ。")
		_ = c.MarkFlagRequired("text")
	}
	editCmd.Flags().StringVarP(&opts.ImagePath, "image", "i", "", "編集する元画像のパスなのだ（必須）。")
	_ = editCmd.MarkFlagRequired("image")
}

func runRequest(ctx context.Context, mode domain.Mode, source []byte, declared string) error {
	d, err := domain.ParseDomain(opts.Domain)
	if err != nil {
		return err
	}
	st, err := domain.ParseStyle(opts.Style)
	if err != nil {
		return err
	}
	format, ok := domain.ParseImageFormat(opts.Format)
	if !ok {
		return fmt.Errorf("保存形式 %q には対応していないのだ", opts.Format)
	}

	app, err := builder.BuildApp(ctx, cfg)
	if err != nil {
		return err
	}
	sess, _, err := app.Sessions.GetOrCreate("")
	if err != nil {
		return err
	}

	slog.Info("パイプラインを起動するのだ！",
		"mode", mode,
		"domain", d,
		"style", st,
		"count", opts.Count,
		"text_model", cfg.TextModel,
		"image_model", cfg.ImageModel)

	entry, err := sess.Handle(ctx, domain.RawRequest{
		UserText:    opts.Text,
		Domain:      d,
		Style:       st,
		SourceImage: source,
		SourceMIME:  declared,
		OutputCount: opts.Count,
		Mode:        mode,
	})
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	fmt.Fprintln(os.Stdout, entry.Refined.Text)

	paths, err := saveImages(cfg.OutputDir, entry, format, opts.JPEGQuality)
	if err != nil {
		return err
	}
	if entry.Result.Partial() {
		slog.Warn("要求より少ない枚数しか生成されなかったのだ",
			"requested", entry.Result.Requested, "received", len(entry.Result.Images))
	}
	slog.Info("すべての工程が完了したのだ！", "files", paths, "latency", entry.Result.BackendLatency)
	return nil
}

// saveImages は結果の画像を dir に保存し、書き出したパスを返すのだ。
func saveImages(dir string, entry domain.HistoryEntry, format domain.ImageFormat, quality int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗したのだ: %w", err)
	}
	prefix := entry.Timestamp.Format("20060102-150405")
	paths := make([]string, 0, len(entry.Result.Images))
	for i, img := range entry.Result.Images {
		data, ext, err := imgutil.Export(img, format, quality)
		if err != nil {
			return paths, fmt.Errorf("画像 %d の変換に失敗したのだ: %w", i, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%s-%02d%s", prefix, entry.Mode, i+1, ext))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("画像の保存に失敗したのだ: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
