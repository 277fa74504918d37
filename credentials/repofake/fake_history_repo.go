package fakehistoryrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-session-server/credentials"
)

var _ credentials.HistoryRepo = (*FakeHistoryRepo)(nil)

type FakeHistoryRepo struct {
	entries map[string][]credentials.HistoryEntry // newest last
	lock    sync.RWMutex
}

func NewFakeHistoryRepo() *FakeHistoryRepo {
	return &FakeHistoryRepo{
		entries: make(map[string][]credentials.HistoryEntry),
	}
}

func (r *FakeHistoryRepo) Append(_ context.Context, entry credentials.HistoryEntry, keep int) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	list := append(r.entries[entry.UserID], entry)
	if keep > 0 && len(list) > keep {
		list = list[len(list)-keep:]
	}
	r.entries[entry.UserID] = list
	return nil
}

func (r *FakeHistoryRepo) Recent(_ context.Context, userID string, limit int) ([]credentials.HistoryEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := r.entries[userID]
	out := make([]credentials.HistoryEntry, 0, len(list))
	for i := len(list) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Len is the number of retained entries for userID.
func (r *FakeHistoryRepo) Len(userID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.entries[userID])
}
