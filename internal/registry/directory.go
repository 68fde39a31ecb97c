package registry

import "sync"

// ConnectionDirectory maps an external identity (username) to its current
// connection for identity-targeted pushes outside the group mechanism.
// An identity has at most one addressable connection; Add overwrites the
// prior mapping (last-connected wins). A reverse index keeps disconnect
// cleanup O(1).
type ConnectionDirectory struct {
	mu     sync.RWMutex
	byUser map[string]string
	byConn map[string]string
}

func NewConnectionDirectory() *ConnectionDirectory {
	return &ConnectionDirectory{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Add records connID as the current connection for username.
func (d *ConnectionDirectory) Add(username, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.byUser[username]; ok {
		delete(d.byConn, old)
	}
	if oldUser, ok := d.byConn[connID]; ok {
		delete(d.byUser, oldUser)
	}
	d.byUser[username] = connID
	d.byConn[connID] = username
}

// RemoveByConnection drops whatever identity the connection represented.
// Must be called on every disconnect so pushes never target a closed
// connection.
func (d *ConnectionDirectory) RemoveByConnection(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if username, ok := d.byConn[connID]; ok {
		delete(d.byConn, connID)
		delete(d.byUser, username)
	}
}

// Lookup resolves the current connection for an identity.
func (d *ConnectionDirectory) Lookup(username string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	connID, ok := d.byUser[username]
	return connID, ok
}

// Connections returns a snapshot of all addressable connection ids.
func (d *ConnectionDirectory) Connections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conns := make([]string, 0, len(d.byConn))
	for connID := range d.byConn {
		conns = append(conns, connID)
	}
	return conns
}
