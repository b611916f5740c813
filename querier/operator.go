package querier

import "strings"

// Operator is a comparison applied by a Filter.
type Operator string

const (
	OpEq        Operator = "="
	OpNe        Operator = "<>"
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpLike      Operator = "LIKE"
	OpILike     Operator = "ILIKE"
	OpNotLike   Operator = "NOT LIKE"
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// arity is the number of placeholders an operator binds.
type arity uint8

const (
	// arityScalar binds the filter value once.
	arityScalar arity = iota
	// arityNone binds nothing.
	arityNone
	// arityList binds every element of the value.
	arityList
)

// operators is the single dispatch table for filter compilation. Adding an
// operator means adding a row here.
var operators = map[Operator]arity{
	OpEq:        arityScalar,
	OpNe:        arityScalar,
	OpGt:        arityScalar,
	OpGte:       arityScalar,
	OpLt:        arityScalar,
	OpLte:       arityScalar,
	OpLike:      arityScalar,
	OpILike:     arityScalar,
	OpNotLike:   arityScalar,
	OpIn:        arityList,
	OpIsNull:    arityNone,
	OpIsNotNull: arityNone,
}

// canonical upper-cases op and collapses inner whitespace, so "is  null"
// resolves to OpIsNull.
func (op Operator) canonical() Operator {
	return Operator(strings.Join(strings.Fields(strings.ToUpper(string(op))), " "))
}

// lookup resolves op against the dispatch table.
func (op Operator) lookup() (Operator, arity, bool) {
	c := op.canonical()
	a, ok := operators[c]
	return c, a, ok
}

// Known reports whether op is part of the operator table.
func (op Operator) Known() bool {
	_, _, ok := op.lookup()
	return ok
}
