package transport

import (
    "sort"
    "sync"
)

// Manager tracks the live peers of one host and enforces its peer capacity.
type Manager struct {
    mu       sync.RWMutex
    capacity int
    peers    map[PeerID]Peer
}

// NewManager returns a manager admitting at most capacity peers (0 = unbounded).
func NewManager(capacity int) *Manager {
    return &Manager{capacity: capacity, peers: make(map[PeerID]Peer)}
}

// Add registers p. It fails with ErrHostFull when the capacity is reached.
func (m *Manager) Add(p Peer) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.peers[p.ID()]; ok { return nil }
    if m.capacity > 0 && len(m.peers) >= m.capacity {
        return ErrHostFull
    }
    m.peers[p.ID()] = p
    return nil
}

// Remove forgets a peer. Unknown ids are ignored.
func (m *Manager) Remove(id PeerID) {
    m.mu.Lock()
    delete(m.peers, id)
    m.mu.Unlock()
}

// Get returns the live peer with id (if any).
func (m *Manager) Get(id PeerID) Peer {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return m.peers[id]
}

func (m *Manager) Len() int {
    m.mu.RLock(); defer m.mu.RUnlock()
    return len(m.peers)
}

// List returns live peers ordered by id.
func (m *Manager) List() []Peer {
    m.mu.RLock()
    out := make([]Peer, 0, len(m.peers))
    for _, p := range m.peers { out = append(out, p) }
    m.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
    return out
}

// ResetAll resets every live peer and empties the manager.
func (m *Manager) ResetAll() {
    for _, p := range m.List() {
        p.Reset()
    }
    m.mu.Lock()
    m.peers = make(map[PeerID]Peer)
    m.mu.Unlock()
}
