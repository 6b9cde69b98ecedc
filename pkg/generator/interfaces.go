package generator

import (
	"context"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"google.golang.org/genai"
)

// ImageBackend は指示文（と任意の元画像）から画像を生成するバックエンドです。
// 返す画像の枚数は RenderRequest.Count 以下であることがあります。
type ImageBackend interface {
	Render(ctx context.Context, req RenderRequest) ([]domain.Image, error)
}

// ContentGenerator は Gemini の GenerateContent 呼び出しを抽象化するインターフェースです。
// *genai.Client の Models フィールドがそのまま満たします。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
