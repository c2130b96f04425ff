package lexiscope

import (
	"github.com/jward/lexiscope/internal/highlight"
	"github.com/jward/lexiscope/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// API. They are identical to the internal types; no conversion is needed.

type Store = store.Store
type File = store.File
type Scope = store.Scope
type Declaration = store.Declaration
type Reference = store.Reference
type Diagnostic = store.Diagnostic
type Token = highlight.Token
type NamedReturns = highlight.NamedReturns

// Named-return rendering policies.
const (
	NamedReturnsLocal    = highlight.NamedReturnsLocal
	NamedReturnsDistinct = highlight.NamedReturnsDistinct
)
