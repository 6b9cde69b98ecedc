package generator

import (
	"context"
	"sync"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"google.golang.org/genai"
)

// --- Mocks ---

type mockImageBackend struct {
	renderFunc func(ctx context.Context, req RenderRequest) ([]domain.Image, error)
	calls      int
	lastReq    RenderRequest
}

func (m *mockImageBackend) Render(ctx context.Context, req RenderRequest) ([]domain.Image, error) {
	m.calls++
	m.lastReq = req
	if m.renderFunc != nil {
		return m.renderFunc(ctx, req)
	}
	return nil, nil
}

type mockContentGenerator struct {
	mu           sync.Mutex
	generateFunc func(ctx context.Context, call int, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	calls        int
	lastModel    string
}

func (m *mockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastModel = model
	m.mu.Unlock()
	return m.generateFunc(ctx, call, contents, config)
}

func imageResponse(data string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "here you go"},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte(data)}},
				},
			},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func fakeImages(names ...string) []domain.Image {
	out := make([]domain.Image, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Image{Data: []byte(n), MIMEType: "image/png"})
	}
	return out
}
