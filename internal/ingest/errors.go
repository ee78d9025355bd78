package ingest

import (
	"errors"
	"fmt"
)

// Names of the four required feeds, used in InputError.
const (
	InputSales     = "sales"
	InputInventory = "inventory"
	InputReorder   = "reorder"
	InputEOQ       = "eoq"
)

var (
	ErrMissingInput  = errors.New("input file not found")
	ErrMissingColumn = errors.New("required column missing")
	ErrEmptyTable    = errors.New("table has no header row")
)

// InputError names the feed that could not be loaded.
type InputError struct {
	Input string
	Path  string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s input %q: %v", e.Input, e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func inputErr(input, path string, err error) error {
	return &InputError{Input: input, Path: path, Err: err}
}
