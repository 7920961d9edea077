//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

// timestampLayouts are tried in order. The first is what the dataset
// generator writes.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

// ParseValue converts one CSV field to the Go value loaded into col. An
// empty field in a nullable column becomes nil.
func ParseValue(col catalog.Column, field string) (any, error) {
	if field == "" {
		if col.Nullable {
			return nil, nil
		}
		if col.Kind != catalog.ColumnText {
			return nil, fmt.Errorf("%s: value required", col.Name)
		}
	}

	switch col.Kind {
	case catalog.ColumnInt:
		v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", col.Name, field)
		}
		return v, nil
	case catalog.ColumnDecimal:
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", col.Name, field)
		}
		return v, nil
	case catalog.ColumnTimestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, field, time.UTC); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%s: invalid timestamp %q", col.Name, field)
	}
	return field, nil
}

// checkHeader verifies that header lists exactly the entity's columns in
// interchange order.
func checkHeader(e catalog.Entity, header []string) error {
	want := e.ColumnNames()
	if len(header) != len(want) {
		return fmt.Errorf("%s: expected %d columns, got %d", e.DataFile(), len(want), len(header))
	}
	for i, name := range want {
		got := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		if got != name {
			return fmt.Errorf("%s: column %d is %q, expected %q", e.DataFile(), i+1, got, name)
		}
	}
	return nil
}
