package utils

import (
	"errors"
	"fmt"
	"sync"
)

var ErrTooManyKeys = errors.New("too many keys locked")

type entry struct {
	mu      sync.Mutex
	waiters int
}

// MutexMap hands out one mutex per key. Entries exist only while some caller
// holds or waits on the key, and at most maxSize keys may be in use at once.
type MutexMap[K comparable] struct {
	edit    sync.Mutex
	entries map[K]*entry
	maxSize int
}

func NewMutexMap[K comparable](maxSize int) *MutexMap[K] {
	return &MutexMap[K]{
		entries: make(map[K]*entry),
		maxSize: maxSize,
	}
}

func (m *MutexMap[K]) Lock(key K) error {
	m.edit.Lock()

	e := m.entries[key]
	if e == nil {
		if len(m.entries) >= m.maxSize {
			m.edit.Unlock()
			return fmt.Errorf("%w: limit is %d", ErrTooManyKeys, m.maxSize)
		}
		e = &entry{}
		m.entries[key] = e
	}
	e.waiters++
	m.edit.Unlock()

	e.mu.Lock()
	return nil
}

func (m *MutexMap[K]) Unlock(key K) error {
	m.edit.Lock()
	defer m.edit.Unlock()

	e := m.entries[key]
	if e == nil {
		return fmt.Errorf("key %v not found", key)
	}

	e.mu.Unlock()
	e.waiters--
	if e.waiters == 0 {
		delete(m.entries, key)
	}

	return nil
}

// Do runs fn while holding the lock for key.
func (m *MutexMap[K]) Do(key K, fn func() error) error {
	if err := m.Lock(key); err != nil {
		return err
	}
	defer m.Unlock(key) //nolint:errcheck

	return fn()
}

func (m *MutexMap[K]) Len() int {
	m.edit.Lock()
	defer m.edit.Unlock()
	return len(m.entries)
}
