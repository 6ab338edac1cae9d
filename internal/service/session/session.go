// Package session holds the profile currently being worked and its message thread.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

// ConversationMirror receives a copy of the thread after every append.
// *history.Ledger satisfies it.
type ConversationMirror interface {
	AttachConversation(ctx context.Context, username string, thread []domain.ThreadMessage) (bool, error)
}

// Token identifies one analysis attempt. Only the most recently reserved
// token may install its result.
type Token uint64

// Session is Idle until the first Start, then Active with a thread that
// resets on every new result.
type Session struct {
	mirror ConversationMirror
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	latest  Token
	current *domain.AnalysisResult
	thread  []domain.ThreadMessage
}

func New(mirror ConversationMirror, logger *zap.Logger) *Session {
	return &Session{
		mirror: mirror,
		logger: util.OrNop(logger),
		now:    time.Now,
	}
}

// Reserve marks the start of an analysis. Any earlier token stops being current.
func (s *Session) Reserve() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

func (s *Session) IsCurrent(tok Token) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tok == s.latest
}

// Start replaces the session with result and an empty thread.
func (s *Session) Start(result domain.AnalysisResult) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.install(result)
	return s.latest
}

// StartIfCurrent installs result only when tok is still the latest reservation.
func (s *Session) StartIfCurrent(tok Token, result domain.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.latest {
		return false
	}
	s.install(result)
	return true
}

// Reset returns to Idle. In-flight analyses lose their tokens.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.current = nil
	s.thread = nil
}

// must be called with lock held
func (s *Session) install(result domain.AnalysisResult) {
	r := result
	s.current = &r
	s.thread = []domain.ThreadMessage{}
	s.logger.Debug("Session started", zap.String("username", r.Profile.Username))
}

// Current returns a copy of the active result.
func (s *Session) Current() (domain.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.AnalysisResult{}, false
	}
	return *s.current, true
}

func (s *Session) Thread() []domain.ThreadMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ThreadMessage{}, s.thread...)
}

// AppendMessage adds to the thread and mirrors it into the ledger entry for
// the session's username. A failed or skipped mirror is logged, not returned.
func (s *Session) AppendMessage(ctx context.Context, text string, kind domain.MessageType) (domain.ThreadMessage, error) {
	if !kind.IsValid() {
		return domain.ThreadMessage{}, errors.NewValidationError("message type must be sent or received", "type", string(kind))
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ThreadMessage{}, errors.ErrNoActiveSession
	}
	msg := domain.ThreadMessage{Message: text, Type: kind, Timestamp: s.now()}
	s.thread = append(s.thread, msg)
	username := s.current.Profile.Username
	snapshot := append([]domain.ThreadMessage(nil), s.thread...)
	s.mu.Unlock()

	if s.mirror != nil {
		ok, err := s.mirror.AttachConversation(ctx, username, snapshot)
		switch {
		case err != nil:
			s.logger.Warn("Conversation mirror failed", zap.String("username", username), zap.Error(err))
		case !ok:
			s.logger.Debug("No history entry to mirror into", zap.String("username", username))
		}
	}
	return msg, nil
}

// BuildContext renders the thread oldest first, one line per message.
func (s *Session) BuildContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]string, 0, len(s.thread))
	for _, m := range s.thread {
		who := "Lead replied"
		if m.Type == domain.MessageSent {
			who = "You sent"
		}
		lines = append(lines, fmt.Sprintf("%s: %q", who, m.Message))
	}
	return strings.Join(lines, "\n")
}
