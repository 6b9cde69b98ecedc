package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type imageRef struct {
	Index    int    `json:"index"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url"`
}

type entryResponse struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Mode      string     `json:"mode"`
	Domain    string     `json:"domain"`
	Style     string     `json:"style,omitempty"`
	UserText  string     `json:"user_text"`
	Prompt    string     `json:"prompt"`
	Requested int        `json:"requested"`
	Partial   bool       `json:"partial"`
	LatencyMS int64      `json:"latency_ms"`
	Images    []imageRef `json:"images"`
	SourceURL string     `json:"source_url,omitempty"`
}

func toEntryResponse(e domain.HistoryEntry) entryResponse {
	resp := entryResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Mode:      string(e.Mode),
		Domain:    string(e.Request.Domain),
		Style:     string(e.Request.Style),
		UserText:  e.Request.UserText,
		Prompt:    e.Refined.Text,
		Requested: e.Result.Requested,
		Partial:   e.Result.Partial(),
		LatencyMS: e.Result.BackendLatency.Milliseconds(),
		Images:    make([]imageRef, len(e.Result.Images)),
	}
	for i, img := range e.Result.Images {
		resp.Images[i] = imageRef{
			Index:    i,
			MIMEType: img.MIMEType,
			URL:      fmt.Sprintf("/v1/history/%d/images/%d", e.ID, i),
		}
	}
	if e.Request.HasSource() {
		resp.SourceURL = fmt.Sprintf("/v1/history/%d/source", e.ID)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "リクエストの処理に失敗しました", "status", code, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: kind, Message: err.Error()})
}

// statusFor はエラー分類を HTTP ステータスに変換します。
func statusFor(err error) (int, string) {
	var be *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRefinementFailed):
		return http.StatusBadGateway, "refinement_failed"
	case errors.As(err, &be):
		if be.IsTimeout() {
			return http.StatusGatewayTimeout, "backend_timeout"
		}
		return http.StatusBadGateway, "backend_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
