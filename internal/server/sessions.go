package server

import (
	"sync"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
	"github.com/InkLedgerLabs/certmark/backend/internal/template"
)

const noticeLimit = 32

// Notice is one transient, user-visible message (permission denial, flush
// failure). Notices are drained by the client and never block a mutation.
type Notice struct {
	Message         string `json:"message"`
	IssuedAtSeconds int64  `json:"issuedAt"`
}

// NoticeBoard collects the most recent notices for one builder session. It
// implements the notifier contract of both the annotation store and the
// change queue.
type NoticeBoard struct {
	mu      sync.Mutex
	notices []Notice
	clock   func() time.Time
}

// NewNoticeBoard returns an empty board.
func NewNoticeBoard(clock func() time.Time) *NoticeBoard {
	if clock == nil {
		clock = time.Now
	}
	return &NoticeBoard{clock: clock}
}

// Notify appends a notice, evicting the oldest entries beyond the limit.
func (b *NoticeBoard) Notify(message string) {
	b.mu.Lock()
	b.notices = append(b.notices, Notice{
		Message:         message,
		IssuedAtSeconds: b.clock().UTC().Unix(),
	})
	if len(b.notices) > noticeLimit {
		b.notices = b.notices[len(b.notices)-noticeLimit:]
	}
	b.mu.Unlock()
}

// Drain returns and clears the pending notices.
func (b *NoticeBoard) Drain() []Notice {
	b.mu.Lock()
	drained := b.notices
	b.notices = nil
	b.mu.Unlock()
	return drained
}

// BuilderSession bundles the per-project store, change queue and notice
// board. Sessions are constructed explicitly; nothing here is process-global.
type BuilderSession struct {
	ProjectID string
	Store     *builder.Store
	Queue     *changelog.Queue
	Notices   *NoticeBoard

	mu       sync.Mutex
	template template.Info
}

// SetTemplate records the inspected template of the session's project.
func (s *BuilderSession) SetTemplate(info template.Info) {
	s.mu.Lock()
	s.template = info
	s.mu.Unlock()
}

// Template returns the inspected template, zero before any upload.
func (s *BuilderSession) Template() template.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// SessionFactory builds a fully wired session for a project. Sessions carry
// no caller identity; roles arrive with each store operation.
type SessionFactory func(projectID string) (*BuilderSession, error)

// SessionManager tracks the live builder sessions by project id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*BuilderSession
	factory  SessionFactory
}

// NewSessionManager returns an empty registry backed by the factory.
func NewSessionManager(factory SessionFactory) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*BuilderSession),
		factory:  factory,
	}
}

// Get returns the live session for the project, if any.
func (m *SessionManager) Get(projectID string) (*BuilderSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[projectID]
	return session, ok
}

// GetOrCreate returns the live session for the project, building one through
// the factory on first use.
func (m *SessionManager) GetOrCreate(projectID string) (*BuilderSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[projectID]
	m.mu.RUnlock()
	if ok {
		return session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[projectID]; ok {
		return session, nil
	}
	session, err := m.factory(projectID)
	if err != nil {
		return nil, err
	}
	m.sessions[projectID] = session
	return session, nil
}

// Delete removes the session from the registry.
func (m *SessionManager) Delete(projectID string) {
	m.mu.Lock()
	delete(m.sessions, projectID)
	m.mu.Unlock()
}

// Sessions returns a snapshot of the live sessions, used during shutdown to
// flush pending changes.
func (m *SessionManager) Sessions() []*BuilderSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make([]*BuilderSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		snapshot = append(snapshot, session)
	}
	return snapshot
}
