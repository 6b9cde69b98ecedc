package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// Reader は履歴への読み取り専用アクセスです。UI 層にはこちらだけを渡します。
type Reader interface {
	List() []domain.HistoryEntry
	Get(id int64) (domain.HistoryEntry, error)
	Image(id int64, index int) (domain.Image, error)
	Len() int
}

// Store はセッション内で完了した操作を追記専用で保持します。
// エントリは追加後に変更されず、読み出しは常にコピーを返します。
type Store struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
	nextID  int64
	now     func() time.Time
}

// NewStore は空の Store を作成します。
func NewStore() *Store {
	return &Store{nextID: 1, now: time.Now}
}

// Append は完了した操作を記録し、ID とタイムスタンプを採番したエントリを返します。
// 結果画像がないエントリは記録しません。
func (s *Store) Append(mode domain.Mode, req domain.RawRequest, refined domain.RefinedPrompt, result domain.GenerationResult) (domain.HistoryEntry, error) {
	if len(result.Images) == 0 {
		return domain.HistoryEntry{}, fmt.Errorf("%w: history entry requires at least one image", domain.ErrInvalidRequest)
	}

	entry := domain.HistoryEntry{
		Mode:    mode,
		Request: cloneRequest(req),
		Refined: cloneRefined(refined),
		Result:  cloneResult(result),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	entry.Timestamp = s.now()
	s.nextID++
	s.entries = append(s.entries, entry)

	return cloneEntry(entry), nil
}

// List は古い順にすべてのエントリを返します。
func (s *Store) List() []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Get は ID に対応するエントリを返します。
func (s *Store) Get(id int64) (domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.find(id)
	if !ok {
		return domain.HistoryEntry{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	return cloneEntry(e), nil
}

// Image はエントリの index 番目の結果画像を返します。
func (s *Store) Image(id int64, index int) (domain.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.find(id)
	if !ok {
		return domain.Image{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	if index < 0 || index >= len(e.Result.Images) {
		return domain.Image{}, fmt.Errorf("%w: image %d of entry %d", domain.ErrNotFound, index, id)
	}
	return cloneImage(e.Result.Images[index]), nil
}

// Len は記録済みエントリ数を返します。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ID は 1 から連番で採番され、エントリは採番順に並んでいる
func (s *Store) find(id int64) (domain.HistoryEntry, bool) {
	i := id - 1
	if i < 0 || i >= int64(len(s.entries)) {
		return domain.HistoryEntry{}, false
	}
	return s.entries[i], true
}

func cloneEntry(e domain.HistoryEntry) domain.HistoryEntry {
	e.Request = cloneRequest(e.Request)
	e.Refined = cloneRefined(e.Refined)
	e.Result = cloneResult(e.Result)
	return e
}

func cloneRequest(r domain.RawRequest) domain.RawRequest {
	r.SourceImage = cloneBytes(r.SourceImage)
	return r
}

func cloneRefined(p domain.RefinedPrompt) domain.RefinedPrompt {
	if p.DerivedFrom != nil {
		origin := cloneRequest(*p.DerivedFrom)
		p.DerivedFrom = &origin
	}
	return p
}

func cloneResult(r domain.GenerationResult) domain.GenerationResult {
	images := make([]domain.Image, len(r.Images))
	for i, img := range r.Images {
		images[i] = cloneImage(img)
	}
	r.Images = images
	r.Prompt = cloneRefined(r.Prompt)
	return r
}

func cloneImage(img domain.Image) domain.Image {
	img.Data = cloneBytes(img.Data)
	return img
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
