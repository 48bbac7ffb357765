package db

import (
	"fmt"
	"sync/atomic"
)

// Provider hands out the database instance callers should use right now.
type Provider interface {
	Current() Database
}

// StaticProvider wraps a single fixed database instance.
type StaticProvider struct {
	db Database
}

func NewStaticProvider(database Database) *StaticProvider {
	return &StaticProvider{db: database}
}

func (p *StaticProvider) Current() Database {
	if p == nil {
		return nil
	}
	return p.db
}

// Manager is a Provider whose instance can be replaced at runtime without
// locking out readers. In-flight operations keep the instance they already
// loaded.
type Manager struct {
	active atomic.Value
}

func NewManager(database Database) *Manager {
	m := &Manager{}
	m.active.Store(database)
	return m
}

// Current returns the active database instance.
func (m *Manager) Current() Database {
	if m == nil {
		return nil
	}
	value := m.active.Load()
	if value == nil {
		return nil
	}
	return value.(Database)
}

// Replace installs next as the active instance and returns the one it
// displaced so the caller can close it.
func (m *Manager) Replace(next Database) Database {
	displaced := m.Current()
	m.active.Store(next)
	return displaced
}

// CurrentDatabase resolves the provider to a usable database, rejecting nil
// at either level.
func CurrentDatabase(provider Provider) (Database, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is nil")
	}
	database := provider.Current()
	if database == nil {
		return nil, fmt.Errorf("database is nil")
	}
	return database, nil
}
