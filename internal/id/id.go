// Package id mints and checks trade identifiers.
package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. Ids minted by one process sort by creation time,
// including ids minted within the same millisecond.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s is a well-formed trade id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
