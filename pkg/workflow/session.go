package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/history"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultSessionTTL は最後のアクセスからセッションを破棄するまでの時間です。
const DefaultSessionTTL = 30 * time.Minute

// HandlerFactory はセッション専用の履歴ストアに書き込む Handler を作成します。
type HandlerFactory func(store *history.Store) (Handler, error)

// Session は 1 ユーザーセッション分の処理系と履歴です。
// Handle は直列化され、同一セッションで同時に処理されるリクエストは常に 1 件です。
type Session struct {
	ID      string
	mu      sync.Mutex
	handler Handler
	store   *history.Store
}

// Handle はセッションのロックを取得してリクエストを処理します。
func (s *Session) Handle(ctx context.Context, raw domain.RawRequest) (domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Handle(ctx, raw)
}

// History は読み取り専用の履歴ビューを返します。
func (s *Session) History() history.Reader {
	return s.store
}

// Sessions はセッション ID ごとに独立した Session を管理するレジストリです。
type Sessions struct {
	mu      sync.Mutex
	items   *cache.Cache
	factory HandlerFactory
}

// NewSessions は Sessions を初期化します。ttl が 0 以下なら DefaultSessionTTL を使います。
func NewSessions(factory HandlerFactory, ttl time.Duration) (*Sessions, error) {
	if factory == nil {
		return nil, errors.New("handler factory is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		items:   cache.New(ttl, ttl/2),
		factory: factory,
	}, nil
}

// Get は既存のセッションを返し、有効期限を延長します。
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// GetOrCreate は id のセッションを返します。id が空・不正・期限切れの場合は新しい ID で作成し、
// created を true にします。
func (s *Sessions) GetOrCreate(id string) (sess *Session, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.get(id); ok {
		return sess, false, nil
	}
	sess, err = s.create()
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Len は有効なセッション数を返します。
func (s *Sessions) Len() int {
	return s.items.ItemCount()
}

func (s *Sessions) get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session)
	if !ok {
		slog.Warn("セッションデータが不正な型です", "session_id", id, "type", fmt.Sprintf("%T", v))
		return nil, false
	}
	s.items.SetDefault(id, sess)
	return sess, true
}

func (s *Sessions) create() (*Session, error) {
	store := history.NewStore()
	handler, err := s.factory(store)
	if err != nil {
		return nil, fmt.Errorf("セッションの初期化に失敗しました: %w", err)
	}
	sess := &Session{ID: uuid.NewString(), handler: handler, store: store}
	s.items.SetDefault(sess.ID, sess)
	slog.Info("セッションを作成しました", "session_id", sess.ID)
	return sess, nil
}
