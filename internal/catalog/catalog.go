/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog holds the immutable view of collections used by the
// selector. It is built once from a library scan plus the spin
// configuration and never mutated afterwards.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/friendsincode/mediaspinner/internal/config"
	"github.com/friendsincode/mediaspinner/internal/library"
)

// ErrEmptyCollection indicates a discovered collection with no playable
// items. Fatal at startup: the selector's fallback termination argument
// relies on every collection holding at least one item.
var ErrEmptyCollection = errors.New("collection has no playable items")

const (
	// DefaultWeight applies when the spin config sets no weight.
	DefaultWeight = 1.0
	// DefaultBackoff applies when the spin config sets no backoff.
	DefaultBackoff = 0
)

// Collection is one weighting unit: a named group of items with its
// resolved weight and backoff.
type Collection struct {
	ID      string
	Items   []string
	Weight  float64
	Backoff int
}

// Catalog maps collection ids to collections. Read-only after Build.
type Catalog struct {
	byID  map[string]*Collection
	order []string
}

// Build resolves weights and backoffs for every discovered collection and
// validates the configuration against the scan.
func Build(scan library.ScanResult, spin *config.SpinConfig) (*Catalog, error) {
	for name := range spin.Collections {
		if _, ok := scan[name]; !ok {
			return nil, fmt.Errorf("%w: configured collection %q not found in media root", config.ErrInvalid, name)
		}
	}

	cat := &Catalog{byID: make(map[string]*Collection, len(scan))}
	for name, items := range scan {
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyCollection, name)
		}

		col := &Collection{
			ID:      name,
			Items:   append([]string(nil), items...),
			Weight:  DefaultWeight,
			Backoff: DefaultBackoff,
		}
		if cc, ok := spin.Collections[name]; ok {
			if cc.Weight != nil {
				col.Weight = *cc.Weight
			}
			if cc.Backoff != nil {
				col.Backoff = *cc.Backoff
			}
		}

		cat.byID[name] = col
		cat.order = append(cat.order, name)
	}

	// Fixed iteration order keeps weighted sampling deterministic for a
	// given seed.
	sort.Strings(cat.order)
	return cat, nil
}

// Len returns the number of collections.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Get returns a collection by id.
func (c *Catalog) Get(id string) (*Collection, bool) {
	col, ok := c.byID[id]
	return col, ok
}

// Collections returns all collections in id order.
func (c *Catalog) Collections() []*Collection {
	out := make([]*Collection, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// MaxBackoff returns the largest collection backoff in the catalog.
func (c *Catalog) MaxBackoff() int {
	max := 0
	for _, col := range c.byID {
		if col.Backoff > max {
			max = col.Backoff
		}
	}
	return max
}
