package workflow

import (
	"context"
	"testing"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditController_RunEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("正規化済みの画像と編集系統のプロンプトで編集すること", func(t *testing.T) {
		n, r, a := &mockNormalizer{}, &mockRefiner{}, &mockAdapter{}
		c, err := NewEditController(n, r, a)
		require.NoError(t, err)

		res, err := c.RunEdit(ctx, editRequest())
		require.NoError(t, err)

		assert.Len(t, res.Images, 1)
		assert.Equal(t, []domain.TemplateFamily{domain.FamilyEdit}, r.families)
		assert.True(t, a.lastSource.IsCanonical())
		assert.Equal(t, domain.FamilyEdit, res.Prompt.Family)
	})

	t.Run("元画像がなければ拒否すること", func(t *testing.T) {
		n, r, a := &mockNormalizer{}, &mockRefiner{}, &mockAdapter{}
		c, _ := NewEditController(n, r, a)

		_, err := c.RunEdit(ctx, generateRequest())
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.Zero(t, n.calls)
	})

	t.Run("形式エラーで即座に失敗すること", func(t *testing.T) {
		n, r, a := &mockNormalizer{err: domain.ErrUnsupportedFormat}, &mockRefiner{}, &mockAdapter{}
		c, _ := NewEditController(n, r, a)

		_, err := c.RunEdit(ctx, editRequest())
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Zero(t, r.calls)
		assert.Zero(t, a.editCalls)
	})

	t.Run("必須の依存が欠けていればエラーになること", func(t *testing.T) {
		_, err := NewEditController(&mockNormalizer{}, nil, &mockAdapter{})
		assert.EqualError(t, err, "refiner is required")
		_, err = NewEditController(&mockNormalizer{}, &mockRefiner{}, nil)
		assert.EqualError(t, err, "adapter is required")
	})
}
