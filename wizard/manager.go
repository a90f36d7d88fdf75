package wizard

import (
	"context"
	"sync"
	"time"

	"survey-service/drafts"
	"survey-service/models"

	"github.com/apex/log"
)

// Manager owns the active wizard sessions, keyed by task id, and feeds the
// draft store as a non-blocking side channel of every mutation.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store    *drafts.Store
	debounce *drafts.Debouncer
}

func NewManager(store *drafts.Store, debounceDelay time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		debounce: drafts.NewDebouncer(debounceDelay),
	}
}

// Start returns the session for the task, creating it when absent. For a new
// session a fresh stored draft, if any, is returned so the client can offer
// the restore-or-discard choice; expired drafts were already discarded by
// the store. Draft lookup failures degrade to "no draft available".
func (m *Manager) Start(ctx context.Context, taskId string) (*Session, *models.DraftSnapshot) {
	m.mu.Lock()
	if sess, ok := m.sessions[taskId]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	sess := NewSession(taskId)
	m.sessions[taskId] = sess
	m.mu.Unlock()

	snap, err := m.store.Load(ctx, taskId)
	if err != nil {
		log.Warnf("Draft lookup for task %s failed, continuing without: %v", taskId, err)
		return sess, nil
	}
	return sess, snap
}

// Get returns the active session for the task.
func (m *Manager) Get(taskId string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[taskId]
	return sess, ok
}

// Touch schedules a debounced draft save of the session's current state.
func (m *Manager) Touch(sess *Session) {
	taskId := sess.TaskId
	if taskId == "" {
		return
	}
	m.debounce.Trigger(taskId, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.store.Save(ctx, taskId, sess.Snapshot()); err != nil {
			log.Warnf("Draft save for task %s failed: %v", taskId, err)
		}
	})
}

// Restore merges the stored draft into the session. Returns false when no
// usable draft exists.
func (m *Manager) Restore(ctx context.Context, sess *Session) (bool, error) {
	snap, err := m.store.Load(ctx, sess.TaskId)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	sess.ApplySnapshot(snap)
	return true, nil
}

// ClearDraft cancels any pending save and deletes the stored draft. Called
// on successful submission and on explicit "start fresh".
func (m *Manager) ClearDraft(ctx context.Context, taskId string) {
	if taskId == "" {
		return
	}
	m.debounce.Cancel(taskId)
	if err := m.store.Delete(ctx, taskId); err != nil {
		log.Warnf("Draft delete for task %s failed: %v", taskId, err)
	}
}

// End discards the session. The stored draft, if any, is left alone.
func (m *Manager) End(taskId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, taskId)
}
