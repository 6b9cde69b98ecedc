package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shouni/gemini-prompt-kit/internal/config"
	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveImages(t *testing.T) {
	entry := domain.HistoryEntry{
		ID:        1,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Mode:      domain.ModeGenerate,
		Result: domain.GenerationResult{
			Requested: 2,
			Images: []domain.Image{
				{Data: []byte("first"), MIMEType: "image/png"},
				{Data: []byte("second"), MIMEType: "image/png"},
			},
		},
	}

	t.Run("連番のファイル名で保存されること", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")

		paths, err := saveImages(dir, entry, "", 0)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, filepath.Join(dir, "20260102-030405-generate-01.png"), paths[0])

		data, err := os.ReadFile(paths[1])
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("変換できない画像はエラーになること", func(t *testing.T) {
		_, err := saveImages(t.TempDir(), entry, domain.FormatJPEG, 80)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	})
}

func TestApplyFlags(t *testing.T) {
	t.Run("指定されたフラグだけが反映されること", func(t *testing.T) {
		require.NoError(t, generateCmd.ParseFlags([]string{"--model", "custom-text", "--max-retries", "3", "-v"}))
		t.Cleanup(func() { opts = appOptions{} })

		c := &config.Config{TextModel: "env-text", ImageModel: "env-image", MaxRetries: 0, LogLevel: "info"}
		applyFlags(generateCmd, c)

		assert.Equal(t, "custom-text", c.TextModel)
		assert.Equal(t, "env-image", c.ImageModel)
		assert.Equal(t, 3, c.MaxRetries)
		assert.Equal(t, "debug", c.LogLevel)
	})
}
