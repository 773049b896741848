package treesitter

// NodeClass partitions syntax-node kinds into the categories the
// crawler dispatches on. Unknown kinds classify as ClassNone so new
// grammar node types are an explicit no-op rather than a fallthrough.
type NodeClass int

const (
	ClassNone NodeClass = iota
	ClassCall
	ClassConstruction
	ClassDeclarator
	ClassImplementation
)

// String returns a short label for the node class.
func (c NodeClass) String() string {
	switch c {
	case ClassCall:
		return "call"
	case ClassConstruction:
		return "construction"
	case ClassDeclarator:
		return "declarator"
	case ClassImplementation:
		return "implementation"
	default:
		return "none"
	}
}

// kindTable maps raw tree-sitter node kind strings to crawler concepts
// for one grammar.
type kindTable struct {
	calls         map[string]bool
	constructions map[string]bool
	declarators   map[string]bool
	impls         map[string]bool
	typeIdents    map[string]bool   // explicit type-identifier kinds
	functions     map[string]bool   // function-declaration-shaped kinds
	blocks        map[string]bool   // function body kinds
	names         map[string]bool   // identifier-ish kinds usable as a name token
	selectors     map[string]string // selector-shaped kind -> field holding the selected name
}

// Classify maps a node kind string to its crawler class for this language.
func (l *Language) Classify(kind string) NodeClass {
	switch {
	case l.kinds.constructions[kind]:
		return ClassConstruction
	case l.kinds.calls[kind]:
		return ClassCall
	case l.kinds.declarators[kind]:
		return ClassDeclarator
	case l.kinds.impls[kind]:
		return ClassImplementation
	default:
		return ClassNone
	}
}

// IsFunction reports whether kind is a function-declaration-shaped node.
func (l *Language) IsFunction(kind string) bool { return l.kinds.functions[kind] }

// IsBlock reports whether kind is a function body/block node.
func (l *Language) IsBlock(kind string) bool { return l.kinds.blocks[kind] }

// IsName reports whether kind can serve as a name token.
func (l *Language) IsName(kind string) bool { return l.kinds.names[kind] }

// SelectorField returns the child field holding the selected name for
// selector-shaped kinds (x.y style member access), or "" when kind
// selects nothing.
func (l *Language) SelectorField(kind string) string { return l.kinds.selectors[kind] }

var goKinds = kindTable{
	calls:         set("call_expression"),
	constructions: set("composite_literal"),
	declarators:   set("short_var_declaration", "var_declaration"),
	impls:         set(), // Go has no implements clause
	typeIdents:    set("type_identifier"),
	functions:     set("function_declaration", "method_declaration", "func_literal"),
	blocks:        set("block"),
	names:         set("identifier", "type_identifier", "field_identifier", "package_identifier"),
	selectors:     map[string]string{"selector_expression": "field"},
}

var jsKinds = kindTable{
	calls:         set("call_expression"),
	constructions: set("new_expression"),
	declarators:   set("variable_declarator"),
	impls:         set(),
	typeIdents:    set(), // no explicit type nodes; the ERROR heuristic applies
	functions:     set("function_declaration", "function", "method_definition", "arrow_function", "generator_function_declaration"),
	blocks:        set("statement_block"),
	names:         set("identifier", "property_identifier"),
	selectors:     map[string]string{"member_expression": "property"},
}

var tsKinds = kindTable{
	calls:         set("call_expression"),
	constructions: set("new_expression"),
	declarators:   set("variable_declarator"),
	impls:         set("implements_clause"),
	typeIdents:    set("type_identifier"),
	functions:     set("function_declaration", "function", "method_definition", "arrow_function", "function_signature", "method_signature"),
	blocks:        set("statement_block"),
	names:         set("identifier", "type_identifier", "property_identifier"),
	selectors:     map[string]string{"member_expression": "property"},
}

var pyKinds = kindTable{
	// Python constructions are plain calls; they classify as calls and
	// the callee definition (often a class) is resolved the same way.
	calls:         set("call"),
	constructions: set(),
	declarators:   set("assignment"),
	impls:         set(),
	typeIdents:    set(),
	functions:     set("function_definition"),
	blocks:        set("block"),
	names:         set("identifier"),
	selectors:     map[string]string{"attribute": "attribute"},
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
