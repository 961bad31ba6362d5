//go:build !cgo

package astmap

import (
	"context"

	"remedy/internal/diagnostic"
	"remedy/internal/errors"
)

// Mapper parses source files and resolves diagnostic spans to nodes.
// This is a stub implementation for non-CGO builds.
type Mapper struct{}

// NewMapper creates a new mapper.
// Returns a stub when CGO is disabled.
func NewMapper() *Mapper {
	return &Mapper{}
}

// IsAvailable returns whether syntax mapping is available.
// Returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}

func errNoCGO() error {
	return errors.Newf(errors.ParseFailure, "syntax mapping requires CGO (tree-sitter)")
}

// CheckParses is a stub; it always fails when CGO is disabled.
func (m *Mapper) CheckParses(ctx context.Context, source []byte, lang Language) error {
	return errNoCGO()
}

// Map is a stub; it always fails when CGO is disabled.
func (m *Mapper) Map(ctx context.Context, path string, source []byte, lang Language, span diagnostic.Span) (*Context, error) {
	return nil, errNoCGO()
}

// NodeAt is a stub; it always fails when CGO is disabled.
func (m *Mapper) NodeAt(ctx context.Context, source []byte, lang Language, span diagnostic.Span) (kind, text string, exact bool, err error) {
	return "", "", false, errNoCGO()
}
