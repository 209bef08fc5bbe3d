package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-llm/internal/domain"
	"chat-llm/internal/repository"
)

type storedMessage struct {
	msg           domain.Message
	legacySession string
	orphan        bool
}

// memStore guarda conversaciones y mensajes en memoria con la semantica de los repos reales.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      []storedMessage

	listErr   error
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{conversations: make(map[string]domain.Conversation)}
}

func (s *memStore) repos() (*memConversationRepo, *memMessageRepo) {
	return &memConversationRepo{s}, &memMessageRepo{s}
}

func (s *memStore) addOrphan(id, legacySession string, role domain.Role, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, storedMessage{
		msg:           domain.Message{ID: id, Role: role, Content: content, CreatedAt: at},
		legacySession: legacySession,
		orphan:        true,
	})
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) conversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

type memConversationRepo struct{ s *memStore }

func (r *memConversationRepo) Create(_ context.Context, c domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.conversations {
		if existing.SessionID == c.SessionID {
			return repository.ErrDuplicateSession
		}
	}
	r.s.conversations[c.ID] = c
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return domain.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *memConversationRepo) GetBySessionID(_ context.Context, sessionID string) (domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.SessionID == sessionID {
			return c, nil
		}
	}
	return domain.Conversation{}, repository.ErrNotFound
}

func (r *memConversationRepo) List(_ context.Context, limit int) ([]domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Conversation, 0, len(r.s.conversations))
	for _, c := range r.s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memConversationRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.touchLocked(id, at)
}

func (r *memConversationRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.conversations, id)
	kept := r.s.messages[:0]
	for _, m := range r.s.messages {
		if m.orphan || m.msg.ConversationID != id {
			kept = append(kept, m)
		}
	}
	r.s.messages = kept
	return nil
}

func (s *memStore) touchLocked(id string, at time.Time) error {
	c, ok := s.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
		s.conversations[id] = c
	}
	return nil
}

type memMessageRepo struct{ s *memStore }

func (r *memMessageRepo) Create(_ context.Context, m domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversations[m.ConversationID]; !ok {
		return repository.ErrNotFound
	}
	r.s.messages = append(r.s.messages, storedMessage{msg: m})
	return nil
}

func (r *memMessageRepo) AppendExchange(_ context.Context, conversationID string, at time.Time, msgs ...domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendErr != nil {
		return r.s.appendErr
	}
	if err := r.s.touchLocked(conversationID, at); err != nil {
		return err
	}
	for _, m := range msgs {
		m.ConversationID = conversationID
		r.s.messages = append(r.s.messages, storedMessage{msg: m})
	}
	return nil
}

func (r *memMessageRepo) ListByConversationID(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listErr != nil {
		return nil, r.s.listErr
	}
	out := make([]domain.Message, 0)
	for _, m := range r.s.messages {
		if !m.orphan && m.msg.ConversationID == conversationID {
			out = append(out, m.msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memMessageRepo) CountByRole(_ context.Context, conversationID string, role domain.Role) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.messages {
		if !m.orphan && m.msg.ConversationID == conversationID && m.msg.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) ListOrphanSessions(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, m := range r.s.messages {
		if m.orphan && !seen[m.legacySession] {
			seen[m.legacySession] = true
			out = append(out, m.legacySession)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memMessageRepo) AdoptOrphans(_ context.Context, legacySession, conversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.messages {
		m := &r.s.messages[i]
		if m.orphan && m.legacySession == legacySession {
			m.orphan = false
			m.msg.ConversationID = conversationID
			n++
		}
	}
	return n, nil
}

var (
	_ repository.ConversationRepository = (*memConversationRepo)(nil)
	_ repository.MessageRepository      = (*memMessageRepo)(nil)
)
