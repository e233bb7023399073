package msgchain

import (
	"errors"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned by a size-limited store when an append
// would push it past its capacity. The engine never retries: the error
// surfaces to the caller, who owns the quota policy.
var ErrQuotaExceeded = errors.New("store quota exceeded")

// memStore is an in-memory Store with an optional byte quota, modeling
// the untrusted, size-limited key-value stores chains are meant to
// survive in. It also serves as the fake backend for tests.
type memStore struct {
	mu      sync.RWMutex
	quota   int // max total stored bytes, 0 = unlimited
	used    int
	chains  map[string][]SignedEntry
	threads []ThreadInfo
}

// NewMemStore creates an in-memory store. quota caps the total size of
// stored entries (canonical encoding plus thread key bytes); 0 means
// unlimited.
func NewMemStore(quota int) Store {
	return &memStore{
		quota:  quota,
		chains: make(map[string][]SignedEntry),
	}
}

func (s *memStore) GetTail(thread string) (SignedEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[thread]
	if len(chain) == 0 {
		return SignedEntry{}, false, nil
	}
	return cloneEntry(chain[len(chain)-1]), true, nil
}

func (s *memStore) Append(thread string, e SignedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cost := len(MarshalEntry(e))
	if _, known := s.chains[thread]; !known {
		cost += len(thread)
	}
	if s.quota > 0 && s.used+cost > s.quota {
		return ErrQuotaExceeded
	}

	if _, known := s.chains[thread]; !known {
		s.threads = append(s.threads, ThreadInfo{Name: thread, CreatedAt: time.Now().Unix()})
	}
	s.chains[thread] = append(s.chains[thread], cloneEntry(e))
	s.used += cost
	return nil
}

func (s *memStore) ListAll(thread string) ([]SignedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[thread]
	out := make([]SignedEntry, len(chain))
	for i, e := range chain {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (s *memStore) Threads() ([]ThreadInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ThreadInfo(nil), s.threads...), nil
}
