package domain

import "time"

// TemplateFamily はプロンプトテンプレートの系統です。
// 編集フローは常に FamilyEdit、生成フローは常に FamilyGenerate を使います。
type TemplateFamily string

const (
	FamilyGenerate TemplateFamily = "generate"
	FamilyEdit     TemplateFamily = "edit"
)

// FamilyFor はモードに対応するテンプレート系統を返します。
func FamilyFor(m Mode) TemplateFamily {
	if m == ModeEdit {
		return FamilyEdit
	}
	return FamilyGenerate
}

// RefinedPrompt は画像バックエンドに送る最終的な指示文です。作成後は変更しません。
type RefinedPrompt struct {
	Text        string
	Domain      Domain
	Style       Style
	Family      TemplateFamily
	Expansion   string      // テキストバックエンドが返した展開部分
	DerivedFrom *RawRequest // 元になったリクエスト
}

// GenerationResult は画像バックエンド呼び出しの結果です。
// Images の長さはバックエンドが実際に返した枚数で、Requested より少ないこともあります。
type GenerationResult struct {
	Images         []Image
	Requested      int
	BackendLatency time.Duration
	Prompt         RefinedPrompt
}

// Partial は要求枚数に満たない部分的成功かどうかを返します。
func (r GenerationResult) Partial() bool {
	return len(r.Images) < r.Requested
}

// HistoryEntry は完了した操作の記録です。成功時に一度だけ作られ、以後変更されません。
type HistoryEntry struct {
	ID        int64
	Timestamp time.Time
	Mode      Mode
	Request   RawRequest
	Refined   RefinedPrompt
	Result    GenerationResult
}

// Phase はオーケストレーターの状態遷移です。
// Idle → Refining → Generating|Editing → Committed|Failed
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRefining   Phase = "refining"
	PhaseGenerating Phase = "generating"
	PhaseEditing    Phase = "editing"
	PhaseCommitted  Phase = "committed"
	PhaseFailed     Phase = "failed"
)

// Terminal は終端状態かどうかを返します。
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseFailed
}
