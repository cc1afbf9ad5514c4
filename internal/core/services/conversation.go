package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxConversations bounds the number of conversations held in memory.
// The least recently used one is evicted first.
const maxConversations = 1000

type conversation struct {
	messages []domain.Message
	lastUsed time.Time
}

// conversationMemory keeps the most recent messages per conversation id.
// It is process-local and lost on restart.
type conversationMemory struct {
	mu       sync.Mutex
	limit    int
	capacity int
	byID     map[string]*conversation
	now      func() time.Time
}

func newConversationMemory(limit int) *conversationMemory {
	return &conversationMemory{
		limit:    limit,
		capacity: maxConversations,
		byID:     make(map[string]*conversation),
		now:      time.Now,
	}
}

// History returns a copy of the stored messages for id, oldest first.
func (m *conversationMemory) History(id string) []domain.Message {
	if id == "" || m.limit <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear forgets every conversation.
func (m *conversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*conversation)
}

// Append records a question and its answer, keeping only the last limit messages.
func (m *conversationMemory) Append(id, question, answer string) {
	if id == "" || m.limit <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.byID[id]
	if !ok {
		if len(m.byID) >= m.capacity {
			m.evictOldest()
		}
		c = &conversation{}
		m.byID[id] = c
	}

	c.messages = append(c.messages,
		domain.Message{Role: domain.RoleUser, Content: question, CreatedAt: now},
		domain.Message{Role: domain.RoleAssistant, Content: answer, CreatedAt: now},
	)
	if extra := len(c.messages) - m.limit; extra > 0 {
		c.messages = append([]domain.Message(nil), c.messages[extra:]...)
	}
	c.lastUsed = now
}

// Len returns the number of tracked conversations.
func (m *conversationMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// evictOldest drops the least recently used conversation (caller holds lock).
func (m *conversationMemory) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, c := range m.byID {
		if oldestID == "" || c.lastUsed.Before(oldest) {
			oldestID, oldest = id, c.lastUsed
		}
	}
	delete(m.byID, oldestID)
}
