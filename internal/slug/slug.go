// Package slug allocates human readable project identifiers.
package slug

import (
	"strings"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

const (
	words      = 3
	separator  = "-"
	suffixSize = 6
)

// Allocate returns candidate unchanged when it is non-empty and a freshly
// generated slug otherwise.
func Allocate(candidate string) string {
	if candidate != "" {
		return candidate
	}
	return Generate()
}

// Generate builds a slug of the form adverb-adjective-name-xxxxxx where the
// trailing hex block is taken from a random UUID.
func Generate() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixSize]
	return petname.Generate(words, separator) + separator + suffix
}
