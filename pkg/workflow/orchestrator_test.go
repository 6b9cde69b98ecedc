package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/png"
	"strings"
	"testing"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
	"github.com/shouni/gemini-prompt-kit/pkg/history"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
	"github.com/shouni/gemini-prompt-kit/pkg/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 のロスレス WebP
const webpLosslessBase64 = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func generateRequest() domain.RawRequest {
	return domain.RawRequest{
		UserText:    "spring sale banner for running shoes",
		Domain:      domain.DomainMarketing,
		Style:       domain.StyleCinematic,
		OutputCount: 2,
	}
}

func editRequest() domain.RawRequest {
	req := generateRequest()
	req.UserText = "put the shoe on a beach at sunset"
	req.SourceImage = []byte("jpeg-bytes")
	req.OutputCount = 1
	return req
}

func newMockOrchestrator(t *testing.T, n *mockNormalizer, r *mockRefiner, a *mockAdapter, obs PhaseObserver) (*Orchestrator, *history.Store) {
	t.Helper()
	store := history.NewStore()
	o, err := NewOrchestrator(n, r, a, store, WithPhaseObserver(obs))
	require.NoError(t, err)
	return o, store
}

func TestNewOrchestrator(t *testing.T) {
	_, err := NewOrchestrator(&mockNormalizer{}, &mockRefiner{}, &mockAdapter{}, nil)
	assert.EqualError(t, err, "history store is required")

	_, err = NewOrchestrator(nil, &mockRefiner{}, &mockAdapter{}, history.NewStore())
	assert.EqualError(t, err, "normalizer is required")
}

func TestOrchestrator_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("生成: 生成系統で清書し履歴に記録すること", func(t *testing.T) {
		n, r, a, obs := &mockNormalizer{}, &mockRefiner{}, &mockAdapter{}, &recordingObserver{}
		o, store := newMockOrchestrator(t, n, r, a, obs)

		entry, err := o.Handle(ctx, generateRequest())
		require.NoError(t, err)

		assert.Equal(t, int64(1), entry.ID)
		assert.Equal(t, domain.ModeGenerate, entry.Mode)
		assert.Len(t, entry.Result.Images, 2)
		assert.Equal(t, []domain.TemplateFamily{domain.FamilyGenerate}, r.families)
		assert.Equal(t, 1, a.generateCalls)
		assert.Zero(t, a.editCalls)
		assert.Zero(t, n.calls)
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, []domain.Phase{domain.PhaseRefining, domain.PhaseGenerating, domain.PhaseCommitted}, obs.phases)
	})

	t.Run("編集: 元画像があれば編集系統で処理すること", func(t *testing.T) {
		n, r, a, obs := &mockNormalizer{}, &mockRefiner{}, &mockAdapter{}, &recordingObserver{}
		o, store := newMockOrchestrator(t, n, r, a, obs)

		entry, err := o.Handle(ctx, editRequest())
		require.NoError(t, err)

		assert.Equal(t, domain.ModeEdit, entry.Mode)
		assert.Equal(t, []domain.TemplateFamily{domain.FamilyEdit}, r.families)
		assert.Equal(t, 1, n.calls)
		assert.Equal(t, 1, a.editCalls)
		assert.Zero(t, a.generateCalls)
		assert.Equal(t, domain.FamilyEdit, entry.Refined.Family)
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, []domain.Phase{domain.PhaseRefining, domain.PhaseEditing, domain.PhaseCommitted}, obs.phases)
	})

	t.Run("部分的成功も記録されること", func(t *testing.T) {
		a := &mockAdapter{returned: 1}
		o, store := newMockOrchestrator(t, &mockNormalizer{}, &mockRefiner{}, a, &recordingObserver{})

		req := generateRequest()
		req.OutputCount = 3
		entry, err := o.Handle(ctx, req)
		require.NoError(t, err)
		assert.True(t, entry.Result.Partial())
		assert.Equal(t, 1, store.Len())
	})

	failures := []struct {
		name   string
		req    domain.RawRequest
		n      *mockNormalizer
		r      *mockRefiner
		a      *mockAdapter
		want   error
		phases []domain.Phase
	}{
		{
			name:   "不正なリクエストは何も呼ばずに失敗すること",
			req:    domain.RawRequest{Domain: domain.DomainHR, OutputCount: 1},
			n:      &mockNormalizer{},
			r:      &mockRefiner{},
			a:      &mockAdapter{},
			want:   domain.ErrInvalidRequest,
			phases: []domain.Phase{domain.PhaseFailed},
		},
		{
			name:   "清書の失敗はそのまま返ること",
			req:    generateRequest(),
			n:      &mockNormalizer{},
			r:      &mockRefiner{err: domain.ErrRefinementFailed},
			a:      &mockAdapter{},
			want:   domain.ErrRefinementFailed,
			phases: []domain.Phase{domain.PhaseRefining, domain.PhaseFailed},
		},
		{
			name:   "バックエンドの失敗はそのまま返ること",
			req:    generateRequest(),
			n:      &mockNormalizer{},
			r:      &mockRefiner{},
			a:      &mockAdapter{err: &domain.BackendError{Reason: domain.ReasonNoImages}},
			phases: []domain.Phase{domain.PhaseRefining, domain.PhaseGenerating, domain.PhaseFailed},
		},
		{
			name:   "形式エラーは清書前に失敗すること",
			req:    editRequest(),
			n:      &mockNormalizer{err: domain.ErrUnsupportedFormat},
			r:      &mockRefiner{},
			a:      &mockAdapter{},
			want:   domain.ErrUnsupportedFormat,
			phases: []domain.Phase{domain.PhaseRefining, domain.PhaseFailed},
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			o, store := newMockOrchestrator(t, tt.n, tt.r, tt.a, obs)

			_, err := o.Handle(ctx, tt.req)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				var be *domain.BackendError
				assert.True(t, errors.As(err, &be))
			}
			assert.Zero(t, store.Len(), "nothing is recorded on failure")
			assert.Equal(t, tt.phases, obs.phases)
		})
	}

	t.Run("形式エラー時は清書もバックエンドも呼ばれないこと", func(t *testing.T) {
		n, r, a := &mockNormalizer{err: domain.ErrUnsupportedFormat}, &mockRefiner{}, &mockAdapter{}
		o, _ := newMockOrchestrator(t, n, r, a, nil)

		_, err := o.Handle(ctx, editRequest())
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Zero(t, r.calls)
		assert.Zero(t, a.editCalls)
	})
}

// 実コンポーネントを組み合わせたパイプライン全体のテスト
func newPipeline(t *testing.T, text *stubTextGenerator, backend *stubImageBackend) (*Orchestrator, *history.Store) {
	t.Helper()
	templates, err := prompt.DefaultTemplates()
	require.NoError(t, err)
	refiner, err := prompt.NewRefiner(text, templates, time.Second)
	require.NoError(t, err)
	adapter, err := generator.NewAdapter(backend, time.Second)
	require.NoError(t, err)

	store := history.NewStore()
	o, err := NewOrchestrator(imgutil.NewNormalizer(nil, 0), refiner, adapter, store)
	require.NoError(t, err)
	return o, store
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("マーケティング×シネマティックで2枚生成されること", func(t *testing.T) {
		text := &stubTextGenerator{reply: "A glowing running shoe sprinting through a rain-soaked neon street"}
		backend := &stubImageBackend{}
		o, store := newPipeline(t, text, backend)

		entry, err := o.Handle(ctx, generateRequest())
		require.NoError(t, err)

		assert.Len(t, entry.Result.Images, 2)
		assert.False(t, entry.Result.Partial())
		assert.True(t, strings.HasPrefix(entry.Refined.Text, "### MARKETING VISUAL ###"))
		assert.Equal(t, 1, strings.Count(entry.Refined.Text, text.reply))
		assert.Contains(t, entry.Refined.Text, "cinematic lighting")
		assert.Equal(t, entry.Refined, entry.Result.Prompt)

		require.Len(t, text.instructions, 1)
		require.Len(t, backend.requests, 1)
		assert.Nil(t, backend.requests[0].Source)
		assert.Equal(t, entry.Refined.Text, backend.requests[0].Instruction)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("WebPの元画像はPNGに正規化されてから編集されること", func(t *testing.T) {
		webp, err := base64.StdEncoding.DecodeString(webpLosslessBase64)
		require.NoError(t, err)

		text := &stubTextGenerator{reply: "replace the background with a sandy beach at golden hour"}
		backend := &stubImageBackend{}
		o, _ := newPipeline(t, text, backend)

		req := editRequest()
		req.SourceImage = webp
		req.SourceMIME = "image/webp"
		entry, err := o.Handle(ctx, req)
		require.NoError(t, err)

		require.Len(t, backend.requests, 1)
		src := backend.requests[0].Source
		require.NotNil(t, src)
		assert.Equal(t, domain.FormatPNG, src.Format)
		assert.Equal(t, domain.FormatWebP, src.SourceFormat)
		_, name, err := image.DecodeConfig(bytes.NewReader(src.Data))
		require.NoError(t, err)
		assert.Equal(t, "png", name)

		assert.True(t, strings.HasPrefix(entry.Refined.Text, "### MARKETING EDIT ###"))
		assert.Equal(t, domain.FamilyEdit, entry.Refined.Family)
		assert.Equal(t, webp, entry.Request.SourceImage, "the original upload is kept for before/after export")
	})

	t.Run("デコードできない元画像ではバックエンドが呼ばれないこと", func(t *testing.T) {
		text := &stubTextGenerator{reply: "unused"}
		backend := &stubImageBackend{}
		o, store := newPipeline(t, text, backend)

		req := editRequest()
		req.SourceImage = []byte("definitely not an image")
		_, err := o.Handle(ctx, req)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Empty(t, text.instructions)
		assert.Empty(t, backend.requests)
		assert.Zero(t, store.Len())
	})
}
