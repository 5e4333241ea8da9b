package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pixil98/go-errors"
)

// Identifiers are full object keys: a key type followed by one or more
// colon separated id parts (e.g. "player:bob", "room:millbrook:12").
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(:[a-zA-Z0-9_-]+)+$`)

type ValidatingSpec interface {
	Validate() error
}

type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// KeyType returns the portion of the identifier before the first colon.
func (id Identifier) KeyType() string {
	kt, _, _ := strings.Cut(string(id), ":")
	return kt
}

// ObjectId returns the portion of the identifier after the first colon.
func (id Identifier) ObjectId() string {
	_, oid, _ := strings.Cut(string(id), ":")
	return oid
}

// fileName maps an identifier to a file name that is valid on every platform.
func (id Identifier) fileName() string {
	return strings.ReplaceAll(string(id), ":", ".") + ".json"
}

type Asset[T ValidatingSpec] struct {
	Version    uint       `json:"version"`
	Identifier Identifier `json:"id"`
	Spec       T          `json:"spec"`
}

func (a *Asset[T]) Id() Identifier {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	} else if !identifierPattern.MatchString(a.Identifier.String()) {
		el.Add(fmt.Errorf("id %q must be a key of the form <type>:<id>", a.Identifier))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}

// Record is the stored form of a persistent object: field names mapped to
// JSON compatible values.
type Record map[string]any

func (r Record) Validate() error {
	if r == nil {
		return fmt.Errorf("spec must be an object")
	}
	return nil
}
