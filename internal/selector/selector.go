/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector implements the selection engine: weighted random choice
// over collections with backoff constraints and a staged relaxation
// fallback that guarantees progress.
package selector

import (
	"errors"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/friendsincode/mediaspinner/internal/catalog"
	"github.com/friendsincode/mediaspinner/internal/history"
)

// ErrEmptyCatalog indicates selection was attempted over zero collections.
var ErrEmptyCatalog = errors.New("catalog has no collections")

// Relaxation reports which constraints had to be dropped to produce a
// selection.
type Relaxation int

const (
	// RelaxNone: all backoff constraints were satisfied.
	RelaxNone Relaxation = iota
	// RelaxSameMedia: the same-media backoff filter was dropped.
	RelaxSameMedia
	// RelaxAll: collection backoffs were dropped as well.
	RelaxAll
)

// String returns the metric label for the relaxation stage.
func (r Relaxation) String() string {
	switch r {
	case RelaxSameMedia:
		return "same_media"
	case RelaxAll:
		return "all"
	default:
		return "none"
	}
}

// Selection is the outcome of one Next call.
type Selection struct {
	Collection string
	Item       string
	Seq        uint64
	Relaxation Relaxation
}

// Path returns the external form of the selection, "collection/item".
func (s Selection) Path() string {
	return s.Collection + "/" + s.Item
}

// Selector picks the next item to play. Not safe for concurrent use;
// callers serialize Next.
type Selector struct {
	cat              *catalog.Catalog
	hist             *history.Tracker
	rng              *rand.Rand
	sameMediaBackoff int
	logger           zerolog.Logger
}

// New creates a selector. The random source is injected so selection is
// reproducible under a fixed seed.
func New(cat *catalog.Catalog, sameMediaBackoff int, hist *history.Tracker, rng *rand.Rand, logger zerolog.Logger) *Selector {
	return &Selector{
		cat:              cat,
		hist:             hist,
		rng:              rng,
		sameMediaBackoff: sameMediaBackoff,
		logger:           logger,
	}
}

// Next returns the next selection and records it in history.
//
// Constraints are applied in three stages: full backoff constraints first;
// if nothing qualifies the same-media filter is dropped; if still nothing
// qualifies collection backoffs are dropped too and every collection is in
// play. The last stage cannot be empty because every collection holds at
// least one item, so Next always succeeds on a non-empty catalog.
func (s *Selector) Next() (Selection, error) {
	if s.cat.Len() == 0 {
		return Selection{}, ErrEmptyCatalog
	}

	seq := s.hist.NextSeq()

	relaxation := RelaxNone
	pool := s.eligible(seq, true, true)
	if len(pool) == 0 {
		relaxation = RelaxSameMedia
		pool = s.eligible(seq, true, false)
	}
	if len(pool) == 0 {
		relaxation = RelaxAll
		pool = s.eligible(seq, false, false)
	}

	if relaxation != RelaxNone {
		s.logger.Debug().
			Uint64("seq", seq).
			Str("stage", relaxation.String()).
			Msg("backoff constraints unsatisfiable, relaxed")
	}

	chosen := s.pickWeighted(pool)
	item := chosen.items[s.rng.Intn(len(chosen.items))]
	s.hist.Record(chosen.col.ID, item)

	return Selection{
		Collection: chosen.col.ID,
		Item:       item,
		Seq:        seq,
		Relaxation: relaxation,
	}, nil
}

// pool entry: a collection plus the subset of its items still eligible.
type poolEntry struct {
	col   *catalog.Collection
	items []string
}

func (s *Selector) eligible(seq uint64, collectionBackoff, sameMedia bool) []poolEntry {
	var out []poolEntry
	for _, col := range s.cat.Collections() {
		if collectionBackoff && col.Backoff > 0 {
			if d, ok := s.hist.DistanceSinceCollection(col.ID, seq); ok && d <= uint64(col.Backoff) {
				continue
			}
		}

		items := col.Items
		if sameMedia && s.sameMediaBackoff > 0 {
			items = nil
			for _, it := range col.Items {
				if d, ok := s.hist.DistanceSinceItem(col.ID, it, seq); ok && d <= uint64(s.sameMediaBackoff) {
					continue
				}
				items = append(items, it)
			}
			if len(items) == 0 {
				continue
			}
		}

		out = append(out, poolEntry{col: col, items: items})
	}
	return out
}

// pickWeighted draws one collection with probability proportional to its
// configured weight. The pool is in fixed id order, so ties carry no
// ordering bias beyond the shared random source.
func (s *Selector) pickWeighted(pool []poolEntry) poolEntry {
	total := 0.0
	for _, entry := range pool {
		total += entry.col.Weight
	}

	u := s.rng.Float64() * total
	for _, entry := range pool {
		u -= entry.col.Weight
		if u < 0 {
			return entry
		}
	}
	// Float rounding can leave u at exactly zero after the last bucket.
	return pool[len(pool)-1]
}
