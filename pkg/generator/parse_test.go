package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseImages(t *testing.T) {
	t.Run("正常系", func(t *testing.T) {
		got, err := ParseImages(imageResponse("png-data"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "png-data", string(got[0].Data))
	})

	t.Run("異常系: 候補なし", func(t *testing.T) {
		_, err := ParseImages(&genai.GenerateContentResponse{})
		assert.Error(t, err)
		_, err = ParseImages(nil)
		assert.Error(t, err)
	})

	t.Run("異常系: 画像データなし", func(t *testing.T) {
		_, err := ParseImages(textResponse("just text"))
		assert.EqualError(t, err, "画像データが見つかりませんでした")
	})

	t.Run("異常系: 安全フィルターによるブロック", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}
		_, err := ParseImages(resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FinishReason")
	})
}

func TestParseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "first "},
				{Text: "second"},
			}},
		}},
	}
	got, err := ParseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "first second", got)

	_, err = ParseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestToPart(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	part := ToPart(png, "")
	require.NotNil(t, part)
	assert.Equal(t, "image/png", part.InlineData.MIMEType)

	assert.Nil(t, ToPart([]byte("plain text"), ""))
	assert.NotNil(t, ToPart([]byte("whatever"), "image/webp"))
}
