package dbo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType  = errors.New("unknown type")
	ErrUnknownMixin = errors.New("unknown mixin")
	ErrNotFound     = errors.New("object not found")
	ErrDeleted      = errors.New("object deleted")
	ErrKeyAssigned  = errors.New("object key already assigned")
	ErrNoBackend    = errors.New("no backend configured")
)

// MissingFieldsError is returned when a stored record lacks required fields.
// The record should be treated as corrupt.
type MissingFieldsError struct {
	TypeID string
	Key    string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	target := e.TypeID
	if e.Key != "" {
		target = e.Key
	}
	return fmt.Sprintf("missing required fields %s in %s", strings.Join(e.Fields, ", "), target)
}
