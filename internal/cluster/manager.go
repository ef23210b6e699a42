package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/node"
)

// Manager runs several VMs inside one process, one goroutine each. The VMs
// share nothing but the config value they were built from.
type Manager struct {
	cfg config.Config

	mu    sync.RWMutex
	nodes map[int]*node.Node
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cfg:   cfg,
		nodes: make(map[int]*node.Node),
	}
}

// Get returns the node and whether it exists
func (m *Manager) Get(id int) (*node.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// ListIDs returns all node ids in ascending order
func (m *Manager) ListIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.nodes))
	for k := range m.nodes {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Create binds the endpoint for one VM. It does not start it.
func (m *Manager) Create(id int) (*node.Node, error) {
	if id < 0 || id >= m.cfg.NumVMs() {
		return nil, fmt.Errorf("vm id %d outside [0, %d)", id, m.cfg.NumVMs())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[id]; ok {
		return nil, fmt.Errorf("vm %d already exists", id)
	}
	n, err := node.New(id, m.cfg)
	if err != nil {
		return nil, err
	}
	m.nodes[id] = n
	return n, nil
}

// CreateAll creates every VM in the port table.
func (m *Manager) CreateAll() error {
	for id := 0; id < m.cfg.NumVMs(); id++ {
		if _, err := m.Create(id); err != nil {
			m.Shutdown()
			return err
		}
	}
	return nil
}

// Run starts every created VM and blocks until all have returned. The first
// fatal error cancels the rest.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, id := range m.ListIDs() {
		n, _ := m.Get(id)
		wg.Add(1)
		go func(n *node.Node) {
			defer wg.Done()
			err := n.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("[ERROR] vm %d stopped: %v", n.ID, err)
			errOnce.Do(func() {
				firstErr = err
				cancel()
			})
		}(n)
	}
	wg.Wait()
	return firstErr
}

// Remove closes one VM and forgets it
func (m *Manager) Remove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return nil
	}
	_ = n.Close()
	delete(m.nodes, id)
	return nil
}

// Shutdown closes every VM
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.nodes {
		_ = n.Close()
		delete(m.nodes, id)
	}
}
