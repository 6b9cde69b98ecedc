package generator

import (
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

const (
	// DefaultImageTimeout は画像バックエンド呼び出しの既定タイムアウトです。
	DefaultImageTimeout = 120 * time.Second
	// DefaultImageModel は画像生成・編集に使う既定のモデルです。
	DefaultImageModel = "gemini-2.5-flash-image"
	// DefaultTextModel はプロンプト清書に使う既定のモデルです。
	DefaultTextModel = "gemini-2.5-flash"
)

// RenderRequest は ImageBackend への 1 回分の依頼です。
type RenderRequest struct {
	Instruction string
	Source      *domain.NormalizedImage // 生成では nil
	Count       int
}
