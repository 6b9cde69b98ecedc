package workflow

import (
	"context"
	"sync"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
)

// --- Mocks ---

type mockNormalizer struct {
	calls int
	err   error
}

func (m *mockNormalizer) Normalize(ctx context.Context, data []byte, declared string) (domain.NormalizedImage, error) {
	m.calls++
	if m.err != nil {
		return domain.NormalizedImage{}, m.err
	}
	return domain.NormalizedImage{Format: domain.CanonicalFormat, Data: data, SourceFormat: domain.FormatJPEG}, nil
}

type mockRefiner struct {
	calls    int
	families []domain.TemplateFamily
	err      error
}

func (m *mockRefiner) Refine(ctx context.Context, raw domain.RawRequest, family domain.TemplateFamily) (domain.RefinedPrompt, error) {
	m.calls++
	m.families = append(m.families, family)
	if m.err != nil {
		return domain.RefinedPrompt{}, m.err
	}
	return domain.RefinedPrompt{Text: "refined: " + raw.UserText, Domain: raw.Domain, Style: raw.Style, Family: family}, nil
}

type mockAdapter struct {
	generateCalls int
	editCalls     int
	lastSource    domain.NormalizedImage
	returned      int
	err           error
}

func (m *mockAdapter) result(prompt domain.RefinedPrompt, count int) (domain.GenerationResult, error) {
	if m.err != nil {
		return domain.GenerationResult{}, m.err
	}
	n := count
	if m.returned > 0 {
		n = m.returned
	}
	res := domain.GenerationResult{Requested: count, Prompt: prompt}
	for i := 0; i < n; i++ {
		res.Images = append(res.Images, domain.Image{Data: []byte{byte(i)}, MIMEType: "image/png"})
	}
	return res, nil
}

func (m *mockAdapter) Generate(ctx context.Context, prompt domain.RefinedPrompt, count int) (domain.GenerationResult, error) {
	m.generateCalls++
	return m.result(prompt, count)
}

func (m *mockAdapter) Edit(ctx context.Context, prompt domain.RefinedPrompt, source domain.NormalizedImage, count int) (domain.GenerationResult, error) {
	m.editCalls++
	m.lastSource = source
	return m.result(prompt, count)
}

type mockHandler struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *mockHandler) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) >= m.calls && m.errs[m.calls-1] != nil {
		return domain.HistoryEntry{}, m.errs[m.calls-1]
	}
	return domain.HistoryEntry{ID: int64(m.calls), Request: raw}, nil
}

// recordingObserver は受け取った遷移先を順に記録します。
type recordingObserver struct {
	phases []domain.Phase
}

func (r *recordingObserver) PhaseChanged(ctx context.Context, from, to domain.Phase) {
	r.phases = append(r.phases, to)
}

// stubTextGenerator は prompt.TextGenerator のスタブです。
type stubTextGenerator struct {
	reply        string
	instructions []string
}

func (s *stubTextGenerator) Complete(ctx context.Context, instruction string) (string, error) {
	s.instructions = append(s.instructions, instruction)
	return s.reply, nil
}

// stubImageBackend は generator.ImageBackend のスタブです。
type stubImageBackend struct {
	requests []generator.RenderRequest
}

func (s *stubImageBackend) Render(ctx context.Context, req generator.RenderRequest) ([]domain.Image, error) {
	s.requests = append(s.requests, req)
	out := make([]domain.Image, req.Count)
	for i := range out {
		out[i] = domain.Image{Data: []byte{byte(i + 1)}, MIMEType: "image/png"}
	}
	return out, nil
}
