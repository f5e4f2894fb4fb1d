/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history tracks past selections for backoff checks. The tracker is
// owned exclusively by the selector; callers serialize access at the API
// layer.
package history

import (
	"github.com/google/uuid"
)

// displayDepth is the minimum number of entries retained for the history
// endpoint, independent of what backoff checks require.
const displayDepth = 10

// Entry is one recorded selection.
type Entry struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Item       string `json:"item"`
	Seq        uint64 `json:"seq"`
}

// Path returns the external form of the entry, "collection/item".
func (e Entry) Path() string {
	return e.Collection + "/" + e.Item
}

// Tracker is an ordered, bounded-relevance log of selections. Last-seen
// sequence numbers are kept per collection and per item, so trimming the
// log never affects distance queries.
type Tracker struct {
	next    uint64
	entries []Entry
	keep    int

	lastCollection map[string]uint64
	lastItem       map[string]uint64
}

// NewTracker creates a tracker that retains at least retention entries.
func NewTracker(retention int) *Tracker {
	if retention < displayDepth {
		retention = displayDepth
	}
	return &Tracker{
		keep:           retention,
		lastCollection: make(map[string]uint64),
		lastItem:       make(map[string]uint64),
	}
}

// NextSeq returns the sequence number the next Record call will assign.
func (t *Tracker) NextSeq() uint64 {
	return t.next
}

// Record appends an entry and returns its assigned sequence number.
func (t *Tracker) Record(collectionID, itemID string) uint64 {
	seq := t.next
	t.next++

	t.lastCollection[collectionID] = seq
	t.lastItem[itemKey(collectionID, itemID)] = seq

	t.entries = append(t.entries, Entry{
		ID:         uuid.NewString(),
		Collection: collectionID,
		Item:       itemID,
		Seq:        seq,
	})
	if len(t.entries) > t.keep {
		t.entries = t.entries[len(t.entries)-t.keep:]
	}

	return seq
}

// DistanceSinceCollection returns the number of selections made since the
// collection was last chosen. The second return is false when it was never
// chosen.
func (t *Tracker) DistanceSinceCollection(collectionID string, currentSeq uint64) (uint64, bool) {
	last, ok := t.lastCollection[collectionID]
	if !ok {
		return 0, false
	}
	return currentSeq - last, true
}

// DistanceSinceItem is DistanceSinceCollection for an exact item.
func (t *Tracker) DistanceSinceItem(collectionID, itemID string, currentSeq uint64) (uint64, bool) {
	last, ok := t.lastItem[itemKey(collectionID, itemID)]
	if !ok {
		return 0, false
	}
	return currentSeq - last, true
}

// Recent returns up to n retained entries, newest first.
func (t *Tracker) Recent(n int) []Entry {
	if n <= 0 || n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(t.entries) - 1; i >= len(t.entries)-n; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

func itemKey(collectionID, itemID string) string {
	return collectionID + "/" + itemID
}
