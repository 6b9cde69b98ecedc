package domain

import (
	"fmt"
	"strings"
)

// MaxOutputCount は 1 リクエストで要求できる画像枚数の上限です。
const MaxOutputCount = 8

// Domain はプロンプトテンプレートを選択する業務カテゴリです。
type Domain string

const (
	DomainMarketing Domain = "marketing"
	DomainHR        Domain = "hr"
	DomainBusiness  Domain = "business"
	DomainDesign    Domain = "design"
	DomainEducation Domain = "education"
)

var domainLabels = map[Domain]string{
	DomainMarketing: "Marketing",
	DomainHR:        "HR",
	DomainBusiness:  "Business",
	DomainDesign:    "Design",
	DomainEducation: "Education",
}

// AllDomains はすべての Domain を定義順で返します。
// テンプレート設定の網羅性チェックに使われます。
func AllDomains() []Domain {
	return []Domain{DomainMarketing, DomainHR, DomainBusiness, DomainDesign, DomainEducation}
}

// Label は表示用の名前を返します。
func (d Domain) Label() string {
	if l, ok := domainLabels[d]; ok {
		return l
	}
	return string(d)
}

// Valid は d が既知の Domain かどうかを返します。
func (d Domain) Valid() bool {
	_, ok := domainLabels[d]
	return ok
}

// ParseDomain は大文字小文字を無視して Domain を解決します。
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown domain %q", ErrInvalidRequest, s)
	}
	return d, nil
}

// Style は任意の画風モディファイアです。空文字は「指定なし」です。
type Style string

const (
	StyleNone           Style = ""
	StyleCinematic      Style = "cinematic"
	StyleMinimalist     Style = "minimalist"
	StyleVector         Style = "vector"
	StylePhotorealistic Style = "photorealistic"
	StyleWatercolor     Style = "watercolor"
)

// AllStyles は StyleNone を除くすべての Style を返します。
func AllStyles() []Style {
	return []Style{StyleCinematic, StyleMinimalist, StyleVector, StylePhotorealistic, StyleWatercolor}
}

// Valid は s が既知の Style か StyleNone であるかを返します。
func (s Style) Valid() bool {
	if s == StyleNone {
		return true
	}
	for _, v := range AllStyles() {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStyle は Style を解決します。空文字は StyleNone です。
func ParseStyle(s string) (Style, error) {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	if st == "none" {
		return StyleNone, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, s)
	}
	return st, nil
}

// Mode は生成フローか編集フローかを表します。
type Mode string

const (
	ModeAuto     Mode = ""
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
)

// RawRequest は UI 層から渡される未加工のリクエストです。
type RawRequest struct {
	UserText    string
	Domain      Domain
	Style       Style
	SourceImage []byte
	SourceMIME  string // 申告された入力形式。空なら内容から判定します
	OutputCount int
	Mode        Mode // 空なら SourceImage の有無で決まります
}

// HasSource は元画像が添付されているかを返します。
func (r RawRequest) HasSource() bool {
	return len(r.SourceImage) > 0
}

// ResolveMode はリクエストのモードを一度だけ確定します。
// 元画像があれば編集、なければ生成です。明示モードと矛盾する場合はエラーになります。
func (r RawRequest) ResolveMode() (Mode, error) {
	switch r.Mode {
	case ModeAuto:
		if r.HasSource() {
			return ModeEdit, nil
		}
		return ModeGenerate, nil
	case ModeEdit:
		if !r.HasSource() {
			return "", fmt.Errorf("%w: edit mode requires a source image", ErrInvalidRequest)
		}
		return ModeEdit, nil
	case ModeGenerate:
		if r.HasSource() {
			return "", fmt.Errorf("%w: generate mode does not accept a source image", ErrInvalidRequest)
		}
		return ModeGenerate, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
}

// Validate はデータモデルの不変条件を検証します。
func (r RawRequest) Validate() error {
	if strings.TrimSpace(r.UserText) == "" {
		return fmt.Errorf("%w: user text is empty", ErrInvalidRequest)
	}
	if !r.Domain.Valid() {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidRequest, r.Domain)
	}
	if !r.Style.Valid() {
		return fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, r.Style)
	}
	if r.OutputCount < 1 || r.OutputCount > MaxOutputCount {
		return fmt.Errorf("%w: output count must be between 1 and %d, got %d", ErrInvalidRequest, MaxOutputCount, r.OutputCount)
	}
	if _, err := r.ResolveMode(); err != nil {
		return err
	}
	return nil
}
