package database

import (
	"context"
)

// Mode tells the channel how to run a statement.
type Mode int

const (
	// ModeQuery returns a result set.
	ModeQuery Mode = iota
	// ModeExec returns only the affected row count.
	ModeExec
	// ModeInsert is ModeExec plus the first auto-increment id of the batch.
	ModeInsert
)

// Statement is SQL text with @name placeholders and the flat parameter map.
type Statement struct {
	SQL    string
	Params map[string]any
	Mode   Mode
}

// Column describes one result column as reported by the driver.
type Column struct {
	Name         string
	DatabaseType string
}

// Result is the raw, store-specific response of a statement. Values are
// whatever the driver scanned; the executor normalizes them.
type Result struct {
	Columns      []Column
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// Channel is the opaque SQL execution endpoint.
//
//go:generate mockgen -source=interface.go -destination=mock_channel.go -package=database
//
// Execute runs one statement. Reset discards the current connection handle
// and builds a new one; it is called by the executor before every retry.
type Channel interface {
	Execute(ctx context.Context, stmt Statement) (*Result, error)
	Reset(ctx context.Context) error
	Dialect() Dialect
}
