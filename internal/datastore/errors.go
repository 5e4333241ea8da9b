package datastore

import "errors"

var (
	ErrExists   = errors.New("object already exists")
	ErrNotIndex = errors.New("field is not indexed")
)
