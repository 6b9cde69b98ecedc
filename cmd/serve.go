package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/gemini-prompt-kit/internal/builder"
	"github.com/shouni/gemini-prompt-kit/internal/config"
	"github.com/shouni/gemini-prompt-kit/internal/server"

	"github.com/spf13/cobra"
)

// serveCmd は、UI 層向けの HTTP API を起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API サーバーを起動するのだ。",
	Long: `POST /v1/requests で生成・編集を受け付け、/v1/history でセッションの履歴を返すのだ。
セッションは X-Session-ID ヘッダーで識別するのだよ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := builder.BuildApp(ctx, cfg)
		if err != nil {
			return err
		}
		srv, err := server.New(app.Sessions, cfg.MaxUploadBytes)
		if err != nil {
			return err
		}
		return server.Run(ctx, cfg.ListenAddr, srv.Router())
	},
}

func init() {
	serveCmd.Flags().StringVar(&opts.ListenAddr, "addr", config.DefaultListenAddr, "待ち受けアドレスなのだ。")
}
