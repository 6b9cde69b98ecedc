package prompt

import (
	"strings"
	"unicode"
)

const (
	// MaxUserTextRunes はメタ指示に埋め込むユーザー入力の最大文字数です。
	MaxUserTextRunes = 2000
	// MaxExpansionRunes はテンプレートに流し込む展開テキストの最大文字数です。
	MaxExpansionRunes = 4000
)

// Sanitize はユーザー入力をテンプレートに安全に埋め込める形に整えます。
// 制御文字を除去し、改行を含む連続空白を 1 つの空白にまとめ、最大文字数で切り詰めます。
func Sanitize(s string) string {
	return squash(s, MaxUserTextRunes)
}

// cleanExpansion はテキストバックエンドの応答から展開テキストを取り出します。
// モデルが付けがちなコードフェンスや引用符、前置きのラベルを取り除きます。
func cleanExpansion(s string) string {
	s = strings.TrimSpace(s)
	s = trimCodeFence(s)
	for _, prefix := range []string{"Expansion:", "Description:", "Instruction:", "Prompt:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	s = strings.Trim(s, "\"'`“”")
	return squash(s, MaxExpansionRunes)
}

func trimCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// 言語指定行 (```text など) を捨てる
		if first := strings.TrimSpace(s[:i]); !strings.Contains(first, " ") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func squash(s string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			if n >= maxRunes {
				break
			}
			b.WriteRune(' ')
			n++
		}
		space = false
		if n >= maxRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
