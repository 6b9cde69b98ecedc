package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultTextTemperature はプロンプト清書時の既定の temperature です。
const DefaultTextTemperature float32 = 0.7

// GeminiTextBackend は Gemini のテキストモデルで prompt.TextGenerator を満たすバックエンドです。
type GeminiTextBackend struct {
	client      ContentGenerator
	model       string
	temperature float32
}

// NewGeminiTextBackend は GeminiTextBackend を初期化します。
func NewGeminiTextBackend(client ContentGenerator, model string, temperature float32) (*GeminiTextBackend, error) {
	if client == nil {
		return nil, errors.New("client (ContentGenerator) is required")
	}
	if model == "" {
		model = DefaultTextModel
	}
	if temperature <= 0 {
		temperature = DefaultTextTemperature
	}
	return &GeminiTextBackend{client: client, model: model, temperature: temperature}, nil
}

// Complete は instruction を 1 回だけ送信し、応答テキストを返します。
func (b *GeminiTextBackend) Complete(ctx context.Context, instruction string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(b.temperature),
	}
	resp, err := b.client.GenerateContent(ctx, b.model, genai.Text(instruction), config)
	if err != nil {
		return "", fmt.Errorf("Geminiテキスト生成エラー: %w", err)
	}
	return ParseText(resp)
}
