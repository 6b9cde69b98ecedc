package generator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"google.golang.org/genai"
)

// ToPart は画像データを genai.Part (InlineData) に変換します。
// mimeType が空の場合は内容から判定し、画像でなければ nil を返します。
func ToPart(data []byte, mimeType string) *genai.Part {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	}
}

// ParseImages は Gemini のレスポンスから画像パーツを順番どおりに取り出します。
func ParseImages(resp *genai.GenerateContentResponse) ([]domain.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("Geminiからの有効な応答がありませんでした")
	}

	// 最初の候補 (Candidate) のみを利用する
	candidate := resp.Candidates[0]

	var images []domain.Image
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = http.DetectContentType(part.InlineData.Data)
			}
			if !strings.HasPrefix(mimeType, "image/") {
				continue
			}
			images = append(images, domain.Image{Data: part.InlineData.Data, MIMEType: mimeType})
		}
	}
	if len(images) > 0 {
		return images, nil
	}

	// 安全フィルター等によるブロックの確認
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("画像生成が異常終了しました (FinishReason: %s)", candidate.FinishReason)
	}
	return nil, errors.New("画像データが見つかりませんでした")
}

// ParseText は Gemini のレスポンスからテキストパーツを連結して返します。思考パーツは除外します。
func ParseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("Geminiからの有効な応答がありませんでした")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("応答にコンテンツがありません (FinishReason: %s)", candidate.FinishReason)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
