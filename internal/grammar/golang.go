package grammar

import "sync"

var goFunctionKinds = []string{"function_declaration", "method_declaration", "func_literal"}

// goParams declares the names of a Go parameter_list. Unnamed parameters
// (result types, interface-style signatures) produce no names.
func goParams(tag string) Rule {
	return Rule{Role: RoleDeclaration, Decl: &DeclSpec{
		Names: NameSpec{
			Through: []string{"parameter_declaration", "variadic_parameter_declaration"},
			Field:   "name",
		},
		Visibility: VisibleThroughout,
		Optional:   true,
		Tag:        tag,
	}}
}

func goScope(label string) Rule {
	return Rule{Role: RoleScope, Scope: &ScopeSpec{Label: label}}
}

// goShortVar covers the "left := right" family of statements.
var goShortVarNames = NameSpec{
	Field:   "left",
	Descend: []Descend{{Kind: "expression_list"}},
}

// Ancestors of a keyed_element in an elided literal that is the value of an
// outer keyed element, or a plain element of an outer literal.
var (
	goElidedKeyed      = []string{"literal_value", "literal_element", "keyed_element", "literal_value", "composite_literal"}
	goElidedPositional = []string{"literal_value", "literal_element", "literal_value", "composite_literal"}
)

func newGo() *Descriptor {
	d := &Descriptor{
		Language: "go",
		Blank:    []string{"_"},
		Rules: map[string]Rule{
			"source_file": {Role: RoleScope, Scope: &ScopeSpec{Label: "file", Hoist: true}},

			"function_declaration": {Role: RoleScope, Scope: &ScopeSpec{
				Label: "function",
				Header: []DeclSpec{{
					Names:      NameSpec{Field: "name"},
					Outer:      true,
					Visibility: VisibleThroughout,
					Tag:        "function",
				}},
			}},
			"method_declaration": goScope("function"),
			"func_literal":       goScope("function"),
			"block": {Role: RoleScope, Scope: &ScopeSpec{
				Label:            "block",
				TransparentUnder: goFunctionKinds,
			}},

			"if_statement":                goScope("if"),
			"for_statement":               goScope("loop"),
			"expression_switch_statement": goScope("switch"),
			"select_statement":            goScope("select"),
			"type_switch_statement": {Role: RoleScope, Scope: &ScopeSpec{
				Label: "switch",
				Header: []DeclSpec{{
					Names:    NameSpec{Field: "alias", Descend: []Descend{{Kind: "expression_list"}}},
					After:    "value",
					Optional: true,
					Tag:      "variable",
				}},
			}},
			"expression_case":    goScope("case"),
			"default_case":       goScope("case"),
			"type_case":          goScope("case"),
			"communication_case": goScope("case"),

			"receiver:parameter_list":   goParams("receiver"),
			"parameters:parameter_list": goParams("parameter"),
			"result:parameter_list":     goParams("result"),
			"type_parameter_list": {Role: RoleDeclaration, Decl: &DeclSpec{
				Names:      NameSpec{Through: []string{"type_parameter_declaration"}, Field: "name"},
				Visibility: VisibleThroughout,
				Tag:        "type_parameter",
			}},

			"short_var_declaration": {Role: RoleDeclaration, Decl: &DeclSpec{
				Names:     goShortVarNames,
				Redeclare: RedeclareReference,
				Tag:       "variable",
			}},
			"range_clause": {Role: RoleDeclaration, Decl: &DeclSpec{
				Names:    goShortVarNames,
				Requires: []string{":="},
				Max:      2,
				Tag:      "iteration",
			}},
			"receive_statement": {Role: RoleDeclaration, Decl: &DeclSpec{
				Names:    goShortVarNames,
				Requires: []string{":="},
				Max:      2,
				Tag:      "variable",
			}},
			"var_spec":   {Role: RoleDeclaration, Decl: &DeclSpec{Names: NameSpec{Field: "name"}, Tag: "variable"}},
			"const_spec": {Role: RoleDeclaration, Decl: &DeclSpec{Names: NameSpec{Field: "name"}, Tag: "constant"}},

			"selector_expression": {Role: RoleMember, Member: &MemberSpec{Field: "field"}},
			// Keys of struct literals name fields; keys of map literals are
			// ordinary expressions. Elided inner literals take their type
			// from the enclosing literal's value or element type.
			"keyed_element": {Role: RoleMember, Member: &MemberSpec{
				Field:      "key",
				Positional: true,
				Unless: []Condition{
					{Up: []string{"literal_value", "composite_literal"}, Field: "type", Kind: "map_type"},
					{Up: goElidedKeyed, Field: "type.value", Kind: "map_type"},
					{Up: goElidedKeyed, Field: "type.element", Kind: "map_type"},
					{Up: goElidedPositional, Field: "type.element", Kind: "map_type"},
				},
			}},

			// Parameter names inside signatures that have no body.
			"function_type":  {Role: RoleIgnore},
			"interface_type": {Role: RoleIgnore},

			"identifier": {Role: RoleReference},
		},
	}
	if err := d.Compile(); err != nil {
		panic(err)
	}
	return d
}

var goDescriptor = sync.OnceValue(newGo)

// Go returns the builtin descriptor for Go.
func Go() *Descriptor {
	return goDescriptor()
}
