package contact

// Manager owns the manifolds of the current step
type Manager struct {
	manifolds []Manifold
}

func NewManager() *Manager {
	return &Manager{manifolds: make([]Manifold, 0, 64)}
}

// Reset drops every manifold, keeping the storage
func (m *Manager) Reset() {
	clear(m.manifolds)
	m.manifolds = m.manifolds[:0]
}

func (m *Manager) Add(manifold Manifold) {
	m.manifolds = append(m.manifolds, manifold)
}

// Manifolds returns the manifolds of the step. Elements may be modified in
// place, the slice is valid until the next Reset.
func (m *Manager) Manifolds() []Manifold {
	return m.manifolds
}

func (m *Manager) Len() int {
	return len(m.manifolds)
}
