package session

import (
	"context"
	"maps"
	"sync"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

// Registry supplies the working directory for a session before it is created.
// It is the engine's view of the application's session store.
type Registry interface {
	// WorkingDirectory returns the directory for sessionID, or a
	// *errors.SessionNotFoundError when the registry has no such session.
	WorkingDirectory(ctx context.Context, sessionID string) (string, error)
}

// MapRegistry is an in-memory Registry.
type MapRegistry struct {
	mu   sync.RWMutex
	dirs map[string]string
}

var _ Registry = (*MapRegistry)(nil)

// NewMapRegistry creates a registry seeded with dirs, which may be nil.
func NewMapRegistry(dirs map[string]string) *MapRegistry {
	r := &MapRegistry{dirs: make(map[string]string, len(dirs))}
	maps.Copy(r.dirs, dirs)

	return r
}

// Set records the working directory for a session.
func (r *MapRegistry) Set(sessionID, dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dirs[sessionID] = dir
}

// Delete forgets a session.
func (r *MapRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.dirs, sessionID)
}

// WorkingDirectory implements Registry.
func (r *MapRegistry) WorkingDirectory(ctx context.Context, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	dir, ok := r.dirs[sessionID]
	if !ok {
		return "", &errors.SessionNotFoundError{SessionID: sessionID}
	}

	return dir, nil
}
