// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import "sync"

// lockManager hands out one mutex per group key, so that appends to
// a group are serialized within this process while different groups
// proceed in parallel.
type lockManager struct {
	mu    sync.Mutex             // protects locks
	locks map[string]*sync.Mutex // per-group locks
}

func newLockManager() *lockManager {
	return &lockManager{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until the lock for key is held and returns a function
// that releases it.
func (lm *lockManager) lock(key string) (unlock func()) {
	lm.mu.Lock()
	l, ok := lm.locks[key]
	if !ok {
		l = new(sync.Mutex)
		lm.locks[key] = l
	}
	lm.mu.Unlock()

	l.Lock()
	return l.Unlock
}
