//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen provides the seeded random sources used to synthesize
// write parameters and to pick weighted operations.
package datagen

import (
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Sectors are the industry sectors assigned to inserted securities.
var Sectors = []string{
	"Energy", "Materials", "Industrials", "Consumer Discretionary",
	"Consumer Staples", "Health Care", "Financials", "Information Technology",
	"Communication Services", "Utilities", "Real Estate",
}

// Faker provides fake data generation using gofakeit. A Faker is not safe
// for concurrent use; give every goroutine its own.
type Faker struct {
	faker *gofakeit.Faker
}

// NewFaker creates a new Faker with a random seed.
func NewFaker() *Faker {
	return &Faker{
		faker: gofakeit.New(uint64(time.Now().UnixNano())),
	}
}

// NewFakerWithSeed creates a new Faker with a specific seed for reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
	}
}

// Name generates a random full name.
func (f *Faker) Name() string {
	return f.faker.Name()
}

// Street generates a random street address.
func (f *Faker) Street() string {
	return f.faker.Street()
}

// Company generates a random company name.
func (f *Faker) Company() string {
	return f.faker.Company()
}

// Sector returns one of the known sectors.
func (f *Faker) Sector() string {
	return Choose(f, Sectors)
}

// Ticker generates a four letter upper-case ticker symbol.
func (f *Faker) Ticker() string {
	return strings.ToUpper(f.faker.LetterN(4))
}

// Int generates a random integer between min and max (inclusive).
func (f *Faker) Int(min, max int) int {
	return f.faker.IntRange(min, max)
}

// Int64 generates a random int64 between min and max (inclusive).
func (f *Faker) Int64(min, max int64) int64 {
	return int64(f.faker.IntRange(int(min), int(max)))
}

// Float64 generates a random float64 between min and max.
func (f *Faker) Float64(min, max float64) float64 {
	return f.faker.Float64Range(min, max)
}

// Money generates a random amount between min and max rounded to cents.
func (f *Faker) Money(min, max float64) float64 {
	return math.Round(f.Float64(min, max)*100) / 100
}

// Choose returns a random element from the given slice.
func Choose[T any](f *Faker, items []T) T {
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[f.Int(0, len(items)-1)]
}

// Truncate truncates a string to max length if needed.
func Truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
