package kflow

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kstore"
)

// Manager hosts programs keyed by id, each with a buffer of pending inputs.
// Calls on one program are serialized; different programs may be driven
// concurrently.
type Manager struct {
	reg  *koperator.Registry
	opts []Option
	cfg  config

	mu       sync.RWMutex
	programs map[string]*hosted
}

type hosted struct {
	mu      sync.Mutex
	program *Program
	pending []Input
}

// NewManager creates a manager that builds programs from reg. The options
// apply to every hosted program; each program is additionally named after
// its id.
func NewManager(reg *koperator.Registry, opts ...Option) *Manager {
	return &Manager{
		reg:      reg,
		opts:     opts,
		cfg:      newConfig(opts),
		programs: make(map[string]*hosted),
	}
}

func (m *Manager) programOptions(id string) []Option {
	opts := slices.Clone(m.opts)
	return append(opts, WithName(id))
}

// Create builds a program and hosts it under id. An empty id is replaced by
// a random UUID. The id is returned.
func (m *Manager) Create(id string, description []byte) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if m.exists(id) {
		return "", fmt.Errorf("%w: %s", ErrProgramExists, id)
	}

	p, err := New(description, m.reg, m.programOptions(id)...)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrProgramExists, id)
	}
	m.programs[id] = &hosted{program: p}
	m.cfg.metrics.SetPrograms(len(m.programs))
	m.cfg.log.V(1).Info("Program created", "program", id)
	return id, nil
}

func (m *Manager) exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.programs[id]
	return ok
}

// Delete drops a program together with its pending inputs.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	}
	delete(m.programs, id)
	m.cfg.metrics.SetPrograms(len(m.programs))
	m.cfg.metrics.Forget(id)
	m.cfg.log.V(1).Info("Program deleted", "program", id)
	return nil
}

// Get returns a hosted program. The program must not be used concurrently
// with Manager calls for the same id.
func (m *Manager) Get(id string) (*Program, error) {
	h, err := m.hosted(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.program, nil
}

// IDs returns the hosted program ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.programs))
	for id := range m.programs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) hosted(id string) (*hosted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	}
	return h, nil
}

// Enqueue buffers inputs for a later Flush.
func (m *Manager) Enqueue(id string, inputs ...Input) error {
	h, err := m.hosted(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, in := range inputs {
		h.pending = append(h.pending, Input{Port: in.Port, Message: in.Message.Clone()})
	}
	return nil
}

// Flush runs the pending inputs of a program as one batch and returns the
// merged, filtered outputs. The buffer is emptied even if an input fails.
func (m *Manager) Flush(id string) (Outputs, error) {
	return m.flush(id, (*Program).Batch)
}

// FlushDebug is Flush with unfiltered outputs.
func (m *Manager) FlushDebug(id string) (Outputs, error) {
	return m.flush(id, (*Program).BatchDebug)
}

func (m *Manager) flush(id string, batch func(*Program, []Input) (Outputs, error)) (Outputs, error) {
	h, err := m.hosted(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := h.pending
	h.pending = nil
	out, err := batch(h.program, pending)
	if err != nil {
		return out, fmt.Errorf("program %s: %w", id, err)
	}
	return out, nil
}

// FlushAll flushes every program concurrently. Outputs of programs that
// succeeded are returned even when another one fails.
func (m *Manager) FlushAll(ctx context.Context) (map[string]Outputs, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]Outputs)
	)
	grp, ctx := errgroup.WithContext(ctx)
	for _, id := range m.IDs() {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := m.Flush(id)
			if err != nil {
				return err
			}
			mu.Lock()
			results[id] = out
			mu.Unlock()
			return nil
		})
	}
	err := grp.Wait()
	return results, err
}

// Collect serializes a hosted program.
func (m *Manager) Collect(id string) ([]byte, error) {
	h, err := m.hosted(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.program.Collect(), nil
}

// Restore replaces the program under id, or creates it, from a snapshot.
// Pending inputs of a replaced program are dropped.
func (m *Manager) Restore(id string, data []byte) error {
	p, err := Restore(data, m.reg, m.programOptions(id)...)
	if err != nil {
		return fmt.Errorf("program %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.programs[id]; ok {
		h.mu.Lock()
		h.program, h.pending = p, nil
		h.mu.Unlock()
		return nil
	}
	m.programs[id] = &hosted{program: p}
	m.cfg.metrics.SetPrograms(len(m.programs))
	return nil
}

// Save writes the snapshot of a program to store.
func (m *Manager) Save(ctx context.Context, store kstore.Store, id string) error {
	data, err := m.Collect(id)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, id, data); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}

// Load restores a program from its snapshot in store.
func (m *Manager) Load(ctx context.Context, store kstore.Store, id string) error {
	data, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	return m.Restore(id, data)
}
