package querier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thisisjab/fuxi/fault"
)

// DefaultTableName is queried when a request does not name a table.
const DefaultTableName = "FuxiData"

// IDColumn is the primary key column used by update and delete statements.
const IDColumn = "id"

var (
	// ErrInvalidRequest is wrapped by every fault caused by a malformed request.
	ErrInvalidRequest = errors.New("invalid query request")
	// ErrUnsupportedOperator is wrapped when a strict compiler meets an operator
	// outside of the known operator table.
	ErrUnsupportedOperator = fmt.Errorf("%w: unsupported operator", ErrInvalidRequest)
)

// Combinator joins sibling conditions of a WHERE clause.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

func (c Combinator) normalize() (Combinator, bool) {
	switch Combinator(strings.ToUpper(string(c))) {
	case "", And:
		return And, true
	case Or:
		return Or, true
	default:
		return c, false
	}
}

// Direction is the sort direction of an ORDER BY clause.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

func (d Direction) normalize() (Direction, bool) {
	switch Direction(strings.ToUpper(string(d))) {
	case "", Desc:
		return Desc, true
	case Asc:
		return Asc, true
	default:
		return d, false
	}
}

// Request describes a read against a single table.
type Request struct {
	// TableName defaults to DefaultTableName.
	TableName string `json:"tableName,omitempty"`

	// Columns restricts the projection. Empty means SELECT *.
	Columns []string `json:"columns,omitempty"`

	// Filters are joined uniformly with Logic.
	Filters []Filter `json:"filters,omitempty"`

	// Where is a nested alternative to Filters. Only one of them may be set.
	Where *Group `json:"where,omitempty"`

	Logic   Combinator `json:"logic,omitempty"`
	OrderBy string     `json:"orderBy,omitempty"`
	Order   Direction  `json:"order,omitempty"`
	Limit   *int       `json:"limit,omitempty"`
	Offset  *int       `json:"offset,omitempty"`
}

// Paged reports whether the request asks for a window of rows, in which case
// callers also run the count statement.
func (r Request) Paged() bool {
	return r.Limit != nil || r.Offset != nil
}

// Kind tells what a compiled statement does to the table.
type Kind uint8

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	return [...]string{"SELECT", "INSERT", "UPDATE", "DELETE"}[k]
}

// IsWrite reports whether the statement modifies rows.
func (k Kind) IsWrite() bool {
	return k != KindSelect
}

// Statement is SQL text with positional placeholders ($1, $2, ...) and the
// values bound to them, in placeholder order.
type Statement struct {
	Query string `json:"query"`
	Args  []any  `json:"params"`
	Kind  Kind   `json:"-"`
}

func invalid(field, problem string) error {
	return fault.BadInput(field, problem).WithOriginal(ErrInvalidRequest)
}
