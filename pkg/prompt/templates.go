package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	// ExpansionPlaceholder はドメインテンプレート内で展開テキストが入る位置です。
	ExpansionPlaceholder = "{{.Expansion}}"
	// EditSourcePhrase は編集テンプレートが必ず含む、元画像への言及です。
	EditSourcePhrase = "the provided image"

	// メタテンプレートに渡すフレーム内で展開位置を示すマーカー
	frameMarker = "<EXPANSION>"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// TemplateConfig は YAML で記述されたテンプレート定義です。
type TemplateConfig struct {
	Meta     map[string]string `yaml:"meta"`
	Generate map[string]string `yaml:"generate"`
	Edit     map[string]string `yaml:"edit"`
	Styles   map[string]string `yaml:"styles"`
}

// frameData はドメインテンプレートに渡す値です。
type frameData struct {
	Expansion string
	Style     string
}

// metaData はテキストバックエンド向けメタテンプレートに渡す値です。
type metaData struct {
	DomainLabel   string
	StyleLabel    string
	StyleModifier string
	Frame         string
	UserText      string
}

// TemplateSet は検証済みのテンプレート一式です。構築後は読み取り専用です。
type TemplateSet struct {
	meta      map[domain.TemplateFamily]*template.Template
	templates map[domain.TemplateFamily]map[domain.Domain]*template.Template
	styles    map[domain.Style]string
}

// DefaultTemplates は埋め込みのテンプレート定義から TemplateSet を構築します。
func DefaultTemplates() (*TemplateSet, error) {
	return ParseTemplates(defaultTemplatesYAML)
}

// LoadTemplateFile はファイルからテンプレート定義を読み込みます。
func LoadTemplateFile(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("テンプレートファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	return ParseTemplates(data)
}

// ParseTemplates は YAML を厳密にデコードし、TemplateSet を構築します。
// 未知のキーはエラーになります。
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var cfg TemplateConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("テンプレート定義のデコードに失敗しました: %w", err)
	}
	return NewTemplateSet(cfg)
}

// NewTemplateSet は設定を検証して TemplateSet を構築します。
// 両系統で全ドメインのテンプレートが揃い、全スタイルのモディファイアがあることを要求します。
func NewTemplateSet(cfg TemplateConfig) (*TemplateSet, error) {
	var errs []error
	set := &TemplateSet{
		meta:      make(map[domain.TemplateFamily]*template.Template),
		templates: make(map[domain.TemplateFamily]map[domain.Domain]*template.Template),
		styles:    make(map[domain.Style]string),
	}

	families := map[domain.TemplateFamily]map[string]string{
		domain.FamilyGenerate: cfg.Generate,
		domain.FamilyEdit:     cfg.Edit,
	}
	for _, family := range []domain.TemplateFamily{domain.FamilyGenerate, domain.FamilyEdit} {
		raw := families[family]
		set.templates[family] = make(map[domain.Domain]*template.Template)

		for key := range raw {
			if !domain.Domain(key).Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown domain %q", family, key))
			}
		}
		for _, d := range domain.AllDomains() {
			text, ok := raw[string(d)]
			if !ok || strings.TrimSpace(text) == "" {
				errs = append(errs, fmt.Errorf("%s: missing template for domain %q", family, d))
				continue
			}
			if n := strings.Count(text, ExpansionPlaceholder); n != 1 {
				errs = append(errs, fmt.Errorf("%s/%s: %s must appear exactly once, found %d", family, d, ExpansionPlaceholder, n))
				continue
			}
			if family == domain.FamilyEdit && !strings.Contains(strings.ToLower(text), EditSourcePhrase) {
				errs = append(errs, fmt.Errorf("%s/%s: edit template must refer to %q", family, d, EditSourcePhrase))
				continue
			}
			tmpl, err := template.New(string(family) + "/" + string(d)).Parse(text)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", family, d, err))
				continue
			}
			set.templates[family][d] = tmpl
		}

		metaText, ok := cfg.Meta[string(family)]
		if !ok || strings.TrimSpace(metaText) == "" {
			errs = append(errs, fmt.Errorf("meta: missing instruction for family %q", family))
			continue
		}
		tmpl, err := template.New("meta/" + string(family)).Parse(metaText)
		if err != nil {
			errs = append(errs, fmt.Errorf("meta/%s: %w", family, err))
			continue
		}
		set.meta[family] = tmpl
	}
	for key := range cfg.Meta {
		if _, ok := families[domain.TemplateFamily(key)]; !ok {
			errs = append(errs, fmt.Errorf("meta: unknown family %q", key))
		}
	}

	for key, modifier := range cfg.Styles {
		st := domain.Style(key)
		if st == domain.StyleNone || !st.Valid() {
			errs = append(errs, fmt.Errorf("styles: unknown style %q", key))
			continue
		}
		set.styles[st] = strings.TrimSpace(modifier)
	}
	for _, st := range domain.AllStyles() {
		if set.styles[st] == "" {
			errs = append(errs, fmt.Errorf("styles: missing modifier for style %q", st))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("テンプレート定義が不正です: %w", err)
	}
	return set, nil
}

// StyleModifier はスタイルに対応するモディファイア文字列を返します。StyleNone は空文字です。
func (s *TemplateSet) StyleModifier(st domain.Style) string {
	return s.styles[st]
}

// Render はドメインテンプレートに展開テキストとスタイルを流し込みます。
func (s *TemplateSet) Render(family domain.TemplateFamily, d domain.Domain, st domain.Style, expansion string) (string, error) {
	tmpl, err := s.lookup(family, d)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, frameData{Expansion: expansion, Style: s.StyleModifier(st)}); err != nil {
		return "", fmt.Errorf("テンプレートの適用に失敗しました (%s/%s): %w", family, d, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Instruction はテキストバックエンドに送るメタ指示を組み立てます。
// userText はサニタイズ済みであることが前提です。
func (s *TemplateSet) Instruction(family domain.TemplateFamily, d domain.Domain, st domain.Style, userText string) (string, error) {
	meta, ok := s.meta[family]
	if !ok {
		return "", fmt.Errorf("unknown template family %q", family)
	}
	frame, err := s.Render(family, d, st, frameMarker)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := metaData{
		DomainLabel:   d.Label(),
		StyleLabel:    StyleLabel(st),
		StyleModifier: s.StyleModifier(st),
		Frame:         frame,
		UserText:      userText,
	}
	if err := meta.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("メタ指示の組み立てに失敗しました (%s): %w", family, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (s *TemplateSet) lookup(family domain.TemplateFamily, d domain.Domain) (*template.Template, error) {
	byDomain, ok := s.templates[family]
	if !ok {
		return nil, fmt.Errorf("unknown template family %q", family)
	}
	tmpl, ok := byDomain[d]
	if !ok {
		return nil, fmt.Errorf("%w: unknown domain %q", domain.ErrInvalidRequest, d)
	}
	return tmpl, nil
}

// StyleLabel は表示用のスタイル名を返します（例: "photorealistic" → "Photorealistic"）。
func StyleLabel(st domain.Style) string {
	if st == domain.StyleNone {
		return "None"
	}
	// Caser は状態を持つため呼び出しごとに生成する
	return cases.Title(language.English).String(string(st))
}
