//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"fmt"
	"sort"
)

// Weighted is a cumulative-weight table. Picking draws a uniform integer in
// [1, total] and returns the first item whose cumulative weight reaches it,
// so the result is deterministic for a seeded Faker.
type Weighted[T any] struct {
	items      []T
	cumulative []int
	total      int
}

// NewWeighted builds a table from parallel item and weight slices. Items
// with zero weight are never picked.
func NewWeighted[T any](items []T, weights []int) (*Weighted[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("weighted table needs at least one item")
	}
	if len(items) != len(weights) {
		return nil, fmt.Errorf("got %d items but %d weights", len(items), len(weights))
	}

	w := &Weighted[T]{
		items:      items,
		cumulative: make([]int, len(weights)),
	}
	for i, weight := range weights {
		if weight < 0 {
			return nil, fmt.Errorf("weight %d is negative", weight)
		}
		w.total += weight
		w.cumulative[i] = w.total
	}
	if w.total == 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	return w, nil
}

// Pick returns a random item according to the weights.
func (w *Weighted[T]) Pick(f *Faker) T {
	r := f.Int(1, w.total)
	i := sort.SearchInts(w.cumulative, r)
	return w.items[i]
}

// Share returns the configured probability of the item at index i.
func (w *Weighted[T]) Share(i int) float64 {
	prev := 0
	if i > 0 {
		prev = w.cumulative[i-1]
	}
	return float64(w.cumulative[i]-prev) / float64(w.total)
}

// Len returns the number of items in the table.
func (w *Weighted[T]) Len() int {
	return len(w.items)
}

// ChooseWeighted returns a random element based on weights. It builds the
// table on every call; hot paths should keep a Weighted instead.
func ChooseWeighted[T any](f *Faker, items []T, weights []int) T {
	w, err := NewWeighted(items, weights)
	if err != nil {
		var zero T
		return zero
	}
	return w.Pick(f)
}
