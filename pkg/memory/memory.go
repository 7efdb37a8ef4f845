// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lightpages.
//
// go-lightpages is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package memory provides an in-memory object store. It backs dry runs and
// tests, recording every operation it receives.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// Op names recorded in the operation log.
const (
	OpUpload = "upload"
	OpDelete = "delete"
)

// Operation is one call the store received.
type Operation struct {
	Op  string
	Key string
}

// Memory is an object store that keeps objects in a map.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	ops     []Operation

	// FailUpload and FailDelete, when set, are consulted before every
	// operation; a non-nil result fails it.
	FailUpload func(key string) error
	FailDelete func(key string) error
}

// New creates an empty Memory store.
func New() common.ObjectStore {
	return NewMemory()
}

// NewMemory creates an empty Memory store with its concrete type.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Configure accepts any settings; the memory store has none.
func (m *Memory) Configure(map[string]string) error {
	return nil
}

// Upload stores a copy of data under key.
func (m *Memory) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if err := common.ValidateKey(key); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Operation{Op: OpUpload, Key: key})
	if err := ctx.Err(); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(key); err != nil {
			return "", &common.UploadError{Key: key, Err: err}
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return key, nil
}

// Delete removes key. Deleting a missing key fails with ErrKeyNotFound.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Operation{Op: OpDelete, Key: key})
	if err := ctx.Err(); err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	if m.FailDelete != nil {
		if err := m.FailDelete(key); err != nil {
			return &common.DeleteError{Key: key, Err: err}
		}
	}
	if _, ok := m.objects[key]; !ok {
		return &common.DeleteError{Key: key, Err: common.ErrKeyNotFound}
	}
	delete(m.objects, key)
	return nil
}

// Get returns the bytes stored under key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Operations returns a copy of the operation log.
func (m *Memory) Operations() []Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Operation, len(m.ops))
	copy(out, m.ops)
	return out
}
