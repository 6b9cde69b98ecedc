package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat は入力画像をデコードできない場合のエラーです。
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrRefinementFailed はテキストバックエンドの失敗、または空の応答を表します。
	ErrRefinementFailed = errors.New("prompt refinement failed")
	// ErrNotFound は存在しない履歴 ID が指定された場合のエラーです。
	ErrNotFound = errors.New("history entry not found")
	// ErrInvalidRequest は RawRequest の不変条件違反です。
	ErrInvalidRequest = errors.New("invalid request")
)

// 画像バックエンドエラーの理由
const (
	ReasonTimeout    = "timeout"
	ReasonCallFailed = "backend call failed"
	ReasonNoImages   = "no images returned"
)

// BackendError は画像バックエンドの失敗（エラー応答、タイムアウト、出力ゼロ）を表します。
type BackendError struct {
	Reason string
	Err    error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image backend error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("image backend error (%s)", e.Reason)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsTimeout はタイムアウト起因のエラーかどうかを返します。
func (e *BackendError) IsTimeout() bool {
	return e.Reason == ReasonTimeout
}

// IsRetryable は呼び出し側のリトライポリシーで再試行してよいエラーかを返します。
// RefinementFailed と BackendError だけが対象です。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRefinementFailed) {
		return true
	}
	var be *BackendError
	return errors.As(err, &be)
}
