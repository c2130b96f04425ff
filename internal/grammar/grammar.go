// Package grammar defines language descriptors: static tables that tell the
// scope builder which syntax nodes open scopes, declare names, reference names
// or must be left alone.
//
// A Descriptor is immutable once compiled and may be shared by any number of
// concurrent resolutions.
package grammar

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role is the variant tag of a Rule.
type Role uint8

const (
	RoleNone Role = iota
	RoleScope
	RoleDeclaration
	RoleReference
	RoleMember
	RoleIgnore
)

var roleNames = map[Role]string{
	RoleNone:        "none",
	RoleScope:       "scope",
	RoleDeclaration: "declaration",
	RoleReference:   "reference",
	RoleMember:      "member",
	RoleIgnore:      "ignore",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	for k, v := range roleNames {
		if v == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", string(b))
}

// Visibility controls when a declaration starts binding references.
type Visibility uint8

const (
	// VisibleFromPoint binds references that follow the declaration's point.
	VisibleFromPoint Visibility = iota
	// VisibleThroughout binds every reference in the owning scope.
	VisibleThroughout
)

func (v Visibility) String() string {
	if v == VisibleThroughout {
		return "throughout"
	}
	return "point"
}

func (v Visibility) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Visibility) UnmarshalText(b []byte) error {
	switch string(b) {
	case "point", "":
		*v = VisibleFromPoint
	case "throughout":
		*v = VisibleThroughout
	default:
		return fmt.Errorf("unknown visibility %q", string(b))
	}
	return nil
}

// Redeclare says what happens when a name is declared again in a scope that
// already binds it.
type Redeclare uint8

const (
	// RedeclareShadow creates a new declaration that shadows the old one.
	RedeclareShadow Redeclare = iota
	// RedeclareReference turns the repeated name into a reference to the
	// existing declaration (Go's ":=" reuse, Python rebinding).
	RedeclareReference
)

func (r Redeclare) String() string {
	if r == RedeclareReference {
		return "reference"
	}
	return "shadow"
}

func (r Redeclare) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Redeclare) UnmarshalText(b []byte) error {
	switch string(b) {
	case "shadow", "":
		*r = RedeclareShadow
	case "reference":
		*r = RedeclareReference
	default:
		return fmt.Errorf("unknown redeclare policy %q", string(b))
	}
	return nil
}

// Rule is the behavior attached to one node kind. Exactly one payload is set,
// matching Role; reference and ignore rules carry none.
type Rule struct {
	Role   Role        `yaml:"role" json:"role"`
	Scope  *ScopeSpec  `yaml:"scope,omitempty" json:"scope,omitempty"`
	Decl   *DeclSpec   `yaml:"declaration,omitempty" json:"declaration,omitempty"`
	Member *MemberSpec `yaml:"member,omitempty" json:"member,omitempty"`
}

// ScopeSpec describes a scope-opening construct.
type ScopeSpec struct {
	Label string `yaml:"label" json:"label"`
	// Hoist makes every declaration registered in this scope visible
	// throughout it, regardless of its own visibility policy.
	Hoist bool `yaml:"hoist,omitempty" json:"hoist,omitempty"`
	// Opaque scopes are only searched when they are the innermost scope of a
	// reference; nested scopes look straight through them.
	Opaque bool `yaml:"opaque,omitempty" json:"opaque,omitempty"`
	// TransparentUnder lists parent kinds under which this node shares its
	// parent's scope instead of opening one (a function body block).
	TransparentUnder []string `yaml:"transparent_under,omitempty" json:"transparent_under,omitempty"`
	// Header declarations are extracted from the scope node itself.
	Header []DeclSpec `yaml:"header,omitempty" json:"header,omitempty"`
}

// DeclSpec describes how to extract bound names from a declaration site.
type DeclSpec struct {
	Names      NameSpec   `yaml:"names" json:"names"`
	Visibility Visibility `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	// After names a field of the site; the names become visible once that
	// child has been passed instead of once the whole site has.
	After string `yaml:"after,omitempty" json:"after,omitempty"`
	// Into registers the names in the nearest enclosing scope carrying one of
	// these labels (the root when none does).
	Into []string `yaml:"into,omitempty" json:"into,omitempty"`
	// Outer registers header names in the scope enclosing the scope node.
	Outer bool `yaml:"outer,omitempty" json:"outer,omitempty"`
	// Requires lists anonymous tokens of which the site must contain one;
	// otherwise the site is not a declaration at all.
	Requires  []string  `yaml:"requires,omitempty" json:"requires,omitempty"`
	Min       int       `yaml:"min,omitempty" json:"min,omitempty"`
	Max       int       `yaml:"max,omitempty" json:"max,omitempty"`
	Tag       string    `yaml:"tag,omitempty" json:"tag,omitempty"`
	Redeclare Redeclare `yaml:"redeclare,omitempty" json:"redeclare,omitempty"`
	// Skip lists fields of the site whose subtrees are not resolved.
	Skip []string `yaml:"skip,omitempty" json:"skip,omitempty"`
	// Optional marks Names.Field as possibly absent without the site being
	// malformed (unnamed Go parameters).
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// NameSpec locates the name nodes of a declaration site.
//
// Starting from the site (or from its direct children of a Through kind), the
// children in Field are collected, or all named children when Field is empty.
// Collected nodes of an accepted kind are names; nodes matching a Descend
// entry are expanded and collected again; anything else is ignored.
type NameSpec struct {
	Through []string  `yaml:"through,omitempty" json:"through,omitempty"`
	Field   string    `yaml:"field,omitempty" json:"field,omitempty"`
	Descend []Descend `yaml:"descend,omitempty" json:"descend,omitempty"`
	Kinds   []string  `yaml:"kinds,omitempty" json:"kinds,omitempty"`
}

// Descend expands a pattern node while collecting names: its children in
// Field, or all its named children; with First only the first of them. When
// Field selects nothing, the next entry for the same kind is tried.
type Descend struct {
	Kind  string `yaml:"kind" json:"kind"`
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	First bool   `yaml:"first,omitempty" json:"first,omitempty"`
}

// MemberSpec names the child of a member-access node that is not resolved.
type MemberSpec struct {
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	// Positional selects the Index-th named child when Field is empty or the
	// field child is absent.
	Positional bool `yaml:"positional,omitempty" json:"positional,omitempty"`
	Index      int  `yaml:"index,omitempty" json:"index,omitempty"`
	// Unless disables the rule for sites matching any of the conditions.
	Unless []Condition `yaml:"unless,omitempty" json:"unless,omitempty"`
}

// Condition matches a site whose ancestors are exactly Up (nearest first) and
// whose last such ancestor has a descendant of kind Kind at Field. Field is a
// dot-separated path of field names, as in "type.value".
type Condition struct {
	Up    []string `yaml:"up" json:"up"`
	Field string   `yaml:"field" json:"field"`
	Kind  string   `yaml:"kind" json:"kind"`
}

// DefaultNameKinds is used when a NameSpec lists no kinds.
var DefaultNameKinds = []string{"identifier"}

// Descriptor is the full rule table for one language.
type Descriptor struct {
	Language string `yaml:"language" json:"language"`
	// Blank names never bind and never resolve.
	Blank []string `yaml:"blank,omitempty" json:"blank,omitempty"`
	// Rules are keyed by node kind, or by "field:kind" to match a kind only
	// when it occupies that field in its parent.
	Rules map[string]Rule `yaml:"rules" json:"rules"`

	blank       map[string]bool
	fingerprint string
}

// Lookup returns the rule for a node of kind occupying field. A field-qualified
// rule takes precedence over the plain one.
func (d *Descriptor) Lookup(field, kind string) (Rule, bool) {
	if field != "" {
		if r, ok := d.Rules[field+":"+kind]; ok {
			return r, true
		}
	}
	r, ok := d.Rules[kind]
	return r, ok
}

// IsBlank reports whether name is a blank identifier.
func (d *Descriptor) IsBlank(name string) bool {
	return d.blank[name]
}

// Fingerprint is a stable hash of the descriptor's rules. Two descriptors
// with equal fingerprints resolve identically.
func (d *Descriptor) Fingerprint() string {
	return d.fingerprint
}

// Compile validates the descriptor and builds its lookup tables. Descriptors
// returned by this package are already compiled.
func (d *Descriptor) Compile() error {
	if d.Language == "" {
		return fmt.Errorf("grammar: descriptor has no language")
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("grammar: %s: descriptor has no rules", d.Language)
	}

	keys := make([]string, 0, len(d.Rules))
	for k := range d.Rules {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := validateRule(key, d.Rules[key]); err != nil {
			return fmt.Errorf("grammar: %s: %w", d.Language, err)
		}
	}

	d.blank = make(map[string]bool, len(d.Blank))
	for _, b := range d.Blank {
		d.blank[b] = true
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("grammar: %s: fingerprint: %w", d.Language, err)
	}
	d.fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
	return nil
}

func validateRule(key string, r Rule) error {
	if strings.Count(key, ":") > 1 || strings.HasPrefix(key, ":") || strings.HasSuffix(key, ":") {
		return fmt.Errorf("rule %q: malformed key", key)
	}
	switch r.Role {
	case RoleScope:
		if r.Scope == nil {
			return fmt.Errorf("rule %q: scope role without scope spec", key)
		}
		for i, h := range r.Scope.Header {
			if h.Outer && len(h.Into) > 0 {
				return fmt.Errorf("rule %q: header %d: outer and into are exclusive", key, i)
			}
			if err := validateDecl(h); err != nil {
				return fmt.Errorf("rule %q: header %d: %w", key, i, err)
			}
		}
	case RoleDeclaration:
		if r.Decl == nil {
			return fmt.Errorf("rule %q: declaration role without declaration spec", key)
		}
		if r.Decl.Outer {
			return fmt.Errorf("rule %q: outer is only allowed on scope headers", key)
		}
		if err := validateDecl(*r.Decl); err != nil {
			return fmt.Errorf("rule %q: %w", key, err)
		}
	case RoleMember:
		if r.Member == nil {
			return fmt.Errorf("rule %q: member role without member spec", key)
		}
		if r.Member.Field == "" && !r.Member.Positional {
			return fmt.Errorf("rule %q: member spec selects no child", key)
		}
		for i, c := range r.Member.Unless {
			if len(c.Up) == 0 || c.Field == "" || c.Kind == "" {
				return fmt.Errorf("rule %q: incomplete member condition %d", key, i)
			}
		}
	case RoleReference, RoleIgnore:
	default:
		return fmt.Errorf("rule %q: invalid role %s", key, r.Role)
	}
	return nil
}

func validateDecl(s DeclSpec) error {
	if s.Min < 0 || s.Max < 0 {
		return fmt.Errorf("negative arity bound")
	}
	if s.Max > 0 && s.Min > s.Max {
		return fmt.Errorf("min %d exceeds max %d", s.Min, s.Max)
	}
	if s.After != "" && s.Visibility == VisibleThroughout {
		return fmt.Errorf("after has no effect on a visible-throughout declaration")
	}
	for _, d := range s.Names.Descend {
		if d.Kind == "" {
			return fmt.Errorf("descend entry without kind")
		}
	}
	return nil
}

// NameKinds returns the accepted name kinds of s.
func (s *NameSpec) NameKinds() []string {
	if len(s.Kinds) == 0 {
		return DefaultNameKinds
	}
	return s.Kinds
}
