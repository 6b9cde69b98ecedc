package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
	"github.com/shouni/gemini-prompt-kit/pkg/workflow"

	"github.com/go-chi/chi/v5"
)

// requestPayload は POST /v1/requests の JSON ボディです。
// multipart/form-data の場合は同名のフォーム項目と "image" ファイルを使います。
type requestPayload struct {
	Text      string `json:"text"`
	Domain    string `json:"domain"`
	Style     string `json:"style"`
	Count     int    `json:"count"`
	Mode      string `json:"mode"`
	Image     string `json:"image"` // base64
	ImageMIME string `json:"image_mime"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	raw, err := s.decodeRequest(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too_large", Message: err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}

	sess, _, err := s.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(SessionHeader, sess.ID)

	entry, err := sess.Handle(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) decodeRequest(r *http.Request) (domain.RawRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var p requestPayload
	var image []byte
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
				return domain.RawRequest{}, err
			}
			return domain.RawRequest{}, badRequest("invalid multipart form: %v", err)
		}
		p.Text = r.FormValue("text")
		p.Domain = r.FormValue("domain")
		p.Style = r.FormValue("style")
		p.Mode = r.FormValue("mode")
		if c := r.FormValue("count"); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil {
				return domain.RawRequest{}, badRequest("count must be an integer: %q", c)
			}
			p.Count = n
		}

		file, header, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return domain.RawRequest{}, badRequest("invalid image part: %v", err)
		default:
			defer file.Close()
			if image, err = io.ReadAll(file); err != nil {
				return domain.RawRequest{}, err
			}
			p.ImageMIME = header.Header.Get("Content-Type")
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return domain.RawRequest{}, err
			}
			return domain.RawRequest{}, badRequest("invalid payload: %v", err)
		}
		if p.Image != "" {
			var err error
			if image, err = base64.StdEncoding.DecodeString(p.Image); err != nil {
				return domain.RawRequest{}, badRequest("image must be base64 encoded")
			}
		}
	}

	d, err := domain.ParseDomain(p.Domain)
	if err != nil {
		return domain.RawRequest{}, err
	}
	st, err := domain.ParseStyle(p.Style)
	if err != nil {
		return domain.RawRequest{}, err
	}
	count := p.Count
	if count == 0 {
		count = 1
	}

	return domain.RawRequest{
		UserText:    p.Text,
		Domain:      d,
		Style:       st,
		SourceImage: image,
		SourceMIME:  p.ImageMIME,
		OutputCount: count,
		Mode:        domain.Mode(strings.ToLower(strings.TrimSpace(p.Mode))),
	}, nil
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	sess, ok := s.sessions.Get(r.Header.Get(SessionHeader))
	if !ok {
		writeError(w, r, fmt.Errorf("%w: session", domain.ErrNotFound))
		return nil, false
	}
	return sess, true
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	entries := sess.History().List()
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := sess.History().Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, badRequest("index must be an integer"))
		return
	}
	img, err := sess.History().Image(id, index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBinary(w, img.MIMEType, img.Data, fmt.Sprintf("result-%d-%d", id, index))
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := sess.History().Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !entry.Request.HasSource() {
		writeError(w, r, fmt.Errorf("%w: entry %d has no source image", domain.ErrNotFound, id))
		return
	}
	// 元画像は正規化前のまま保存しているため、形式は内容から判定する
	mimeType := ""
	if f, err := imgutil.DetectFormat(entry.Request.SourceImage); err == nil {
		mimeType = f.MIMEType()
	}
	writeBinary(w, mimeType, entry.Request.SourceImage, fmt.Sprintf("source-%d", id))
}

func writeBinary(w http.ResponseWriter, mimeType string, data []byte, name string) {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	ext := ""
	if f, ok := domain.ParseImageFormat(mimeType); ok && f != "" {
		ext = "." + string(f)
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, badRequest("id must be an integer: %q", s)
	}
	return id, nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
