package trigger

import (
	"fmt"
	"sync"

	"github.com/annel0/trigger-store/internal/world"
	"github.com/google/uuid"
)

// sessions ожидающие установки триггера: актёр выбрал скрипт и должен
// указать блок
type sessions struct {
	mu      sync.Mutex
	pending map[uuid.UUID]string
}

func newSessions() *sessions {
	return &sessions{pending: make(map[uuid.UUID]string)}
}

// StartLocationSet начинает установку. false если у актёра уже есть ожидающая.
func (s *Store) StartLocationSet(actor uuid.UUID, scriptText string) bool {
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()

	if _, exists := s.sessions.pending[actor]; exists {
		return false
	}
	s.sessions.pending[actor] = scriptText
	return true
}

// StopLocationSet отменяет установку. false если отменять нечего.
func (s *Store) StopLocationSet(actor uuid.UUID) bool {
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()

	if _, exists := s.sessions.pending[actor]; !exists {
		return false
	}
	delete(s.sessions.pending, actor)
	return true
}

// PendingLocationScript скрипт ожидающей установки
func (s *Store) PendingLocationScript(actor uuid.UUID) (string, bool) {
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()

	text, ok := s.sessions.pending[actor]
	return text, ok
}

// CompleteLocationSet компилирует ожидающий скрипт и ставит его на loc.
// Занятая координата или ошибка компиляции оставляют сессию открытой.
func (s *Store) CompleteLocationSet(actor uuid.UUID, loc world.Location) error {
	text, ok := s.PendingLocationScript(actor)
	if !ok {
		return ErrNoPendingLocationSet
	}
	if _, occupied := s.index.Get(loc); occupied {
		return fmt.Errorf("%s: %w", loc, ErrLocationOccupied)
	}

	t, err := s.engine.Compile(text)
	if err != nil {
		return err
	}

	s.StopLocationSet(actor)
	return s.set(loc, t)
}
