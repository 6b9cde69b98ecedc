package server

import (
	"context"
	"fmt"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/history"
	"github.com/shouni/gemini-prompt-kit/pkg/workflow"
)

// stubHandler はバックエンドを呼ばずに、要求枚数分の画像を履歴へ記録します。
type stubHandler struct {
	store *history.Store
	err   error
}

func (h *stubHandler) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	if err := raw.Validate(); err != nil {
		return domain.HistoryEntry{}, err
	}
	if h.err != nil {
		return domain.HistoryEntry{}, h.err
	}
	mode, _ := raw.ResolveMode()
	refined := domain.RefinedPrompt{Text: "refined: " + raw.UserText, Domain: raw.Domain, Style: raw.Style, Family: domain.FamilyFor(mode)}
	result := domain.GenerationResult{Requested: raw.OutputCount, Prompt: refined}
	for i := 0; i < raw.OutputCount; i++ {
		result.Images = append(result.Images, domain.Image{Data: []byte(fmt.Sprintf("image-%d", i)), MIMEType: "image/png"})
	}
	return h.store.Append(mode, raw, refined, result)
}

func stubFactory(err error) workflow.HandlerFactory {
	return func(store *history.Store) (workflow.Handler, error) {
		return &stubHandler{store: store, err: err}, nil
	}
}
