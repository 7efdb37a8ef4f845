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

// Package factory builds configured object stores by backend name.
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// StoreCreator is a function that creates a configured object store.
type StoreCreator func(settings map[string]string) (common.ObjectStore, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]StoreCreator)
)

// RegisterStore registers an object store creator under backendType,
// replacing any previous registration.
func RegisterStore(backendType string, creator StoreCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[backendType] = creator
}

// NewStore creates and configures the object store registered as backendType.
func NewStore(backendType string, settings map[string]string) (common.ObjectStore, error) {
	registryMu.RLock()
	creator, exists := registry[backendType]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backendType)
	}
	return creator(settings)
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// configured wraps a constructor so the returned store is configured with
// the settings passed to NewStore.
func configured(newFn func() common.ObjectStore) StoreCreator {
	return func(settings map[string]string) (common.ObjectStore, error) {
		store := newFn()
		if err := store.Configure(settings); err != nil {
			return nil, err
		}
		return store, nil
	}
}
