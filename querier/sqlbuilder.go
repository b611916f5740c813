package querier

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/thisisjab/fuxi/fault"
)

// Options holds configuration for the compiler.
type Options struct {
	// DefaultTable replaces DefaultTableName for requests without a table.
	DefaultTable string

	// IdentifierPattern, when set, must match every table, column and sort
	// field name before it is quoted into the statement.
	IdentifierPattern *regexp.Regexp

	// AllowedTables, when non-empty, is the whitelist of queryable tables.
	AllowedTables []string

	// StrictOperators rejects operators missing from the operator table.
	// Otherwise they are emitted as `"field" <op> $n` and left for the
	// database to reject.
	StrictOperators bool
}

// SafeIdentifier is a conservative pattern for IdentifierPattern.
var SafeIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiler turns requests into parameterized statements. It holds no state
// besides its options and is safe for concurrent use.
type Compiler struct {
	opts Options
}

// NewCompiler creates a new compiler with the given options.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

var defaultCompiler = NewCompiler(Options{})

// CompileFetch compiles r with a zero-option compiler.
func CompileFetch(r Request) (Statement, error) {
	return defaultCompiler.CompileFetch(r)
}

// CompileCount compiles r with a zero-option compiler.
func CompileCount(r Request) (Statement, error) {
	return defaultCompiler.CompileCount(r)
}

// CompileFetch builds
//
//	SELECT * FROM "table" [WHERE ...] [ORDER BY "field" dir] [LIMIT $n] [OFFSET $n]
//
// Limit and offset are bound after the filter values.
func (c *Compiler) CompileFetch(r Request) (Statement, error) {
	p, err := c.prepare(r)
	if err != nil {
		return Statement{}, err
	}

	b := c.newBuilder()

	cols, err := b.columns(p.req.Columns)
	if err != nil {
		return Statement{}, err
	}

	parts := []string{fmt.Sprintf("SELECT %s FROM %s", cols, p.table)}

	where, err := b.where(p.root)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		parts = append(parts, where)
	}

	if p.req.OrderBy != "" {
		field, err := b.identifier("orderBy", p.req.OrderBy)
		if err != nil {
			return Statement{}, err
		}
		parts = append(parts, fmt.Sprintf("ORDER BY %s %s", field, p.order))
	}

	if p.req.Limit != nil {
		parts = append(parts, "LIMIT "+b.bind(*p.req.Limit))
	}

	if p.req.Offset != nil {
		parts = append(parts, "OFFSET "+b.bind(*p.req.Offset))
	}

	return Statement{Query: strings.Join(parts, " "), Args: b.args, Kind: KindSelect}, nil
}

// CompileCount builds SELECT COUNT(*) as total over the same WHERE clause as
// CompileFetch. Sorting and pagination are ignored.
func (c *Compiler) CompileCount(r Request) (Statement, error) {
	p, err := c.prepare(r)
	if err != nil {
		return Statement{}, err
	}

	b := c.newBuilder()
	parts := []string{fmt.Sprintf("SELECT COUNT(*) as total FROM %s", p.table)}

	where, err := b.where(p.root)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		parts = append(parts, where)
	}

	return Statement{Query: strings.Join(parts, " "), Args: b.args, Kind: KindSelect}, nil
}

type prepared struct {
	req   Request
	table string
	root  Group
	order Direction
}

// prepare applies defaults and validates everything that is not a filter.
func (c *Compiler) prepare(r Request) (prepared, error) {
	order, ok := r.Order.normalize()
	if !ok {
		return prepared{}, invalid("order", "Must be one of ASC or DESC.")
	}

	if r.Limit != nil && *r.Limit < 0 {
		return prepared{}, invalid("limit", "Must not be negative.")
	}

	if r.Offset != nil && *r.Offset < 0 {
		return prepared{}, invalid("offset", "Must not be negative.")
	}

	var root Group
	switch {
	case r.Where != nil && len(r.Filters) > 0:
		return prepared{}, invalid("where", "Cannot be combined with filters.")
	case r.Where != nil:
		root = *r.Where
		if r.Logic != "" {
			logic, ok := r.Logic.normalize()
			if !ok {
				return prepared{}, invalid("logic", "Must be one of AND or OR.")
			}
			if root.Logic == "" {
				root.Logic = logic
			} else if inner, _ := root.Logic.normalize(); inner != logic {
				return prepared{}, invalid("logic", "Conflicts with where.logic.")
			}
		}
	default:
		root = Group{Logic: r.Logic, Nodes: filterNodes(r.Filters)}
	}

	table, err := c.table(r.TableName)
	if err != nil {
		return prepared{}, err
	}

	return prepared{req: r, table: table, root: root, order: order}, nil
}

// table resolves, checks and quotes a table name.
func (c *Compiler) table(name string) (string, error) {
	if name == "" {
		name = c.opts.DefaultTable
	}
	if name == "" {
		name = DefaultTableName
	}

	if len(c.opts.AllowedTables) > 0 && !slices.Contains(c.opts.AllowedTables, name) {
		return "", invalid("tableName", fmt.Sprintf("Table %q is not allowed.", name))
	}

	return c.newBuilder().identifier("tableName", name)
}

func (c *Compiler) newBuilder() *builder {
	return &builder{opts: &c.opts, args: []any{}}
}

// builder accumulates bound values. A placeholder number is always the
// length of args after the push, so numbering cannot drift from the values.
type builder struct {
	opts *Options
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) where(root Group) (string, error) {
	clause, err := b.group(root, true)
	if err != nil || clause == "" {
		return "", err
	}
	return "WHERE " + clause, nil
}

// group joins the fragments of its children. Empty children and empty groups
// produce no text.
func (b *builder) group(g Group, top bool) (string, error) {
	logic, ok := g.Logic.normalize()
	if !ok {
		return "", invalid("logic", "Must be one of AND or OR.")
	}

	parts := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		var frag string
		var err error

		switch n := n.(type) {
		case Filter:
			frag, err = b.condition(n)
		case Group:
			frag, err = b.group(n, false)
		case *Filter:
			if n != nil {
				frag, err = b.condition(*n)
			}
		case *Group:
			if n != nil {
				frag, err = b.group(*n, false)
			}
		default:
			return "", invalid("where", fmt.Sprintf("Unknown filter node type %T.", n))
		}

		if err != nil {
			return "", err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}

	if len(parts) == 0 {
		return "", nil
	}

	joined := strings.Join(parts, " "+string(logic)+" ")
	if top {
		return joined, nil
	}
	return "(" + joined + ")", nil
}

// condition compiles one filter according to the operator table.
func (b *builder) condition(f Filter) (string, error) {
	field, err := b.identifier("filters", f.Field)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(string(f.Operator)) == "" {
		return "", invalid("filters", fmt.Sprintf("Operator for %q is required.", f.Field))
	}

	op, kind, known := f.Operator.lookup()
	if !known {
		if b.opts.StrictOperators {
			return "", fault.BadInput("filters", fmt.Sprintf("Operator %q is not supported.", f.Operator)).
				WithOriginal(ErrUnsupportedOperator)
		}
		op, kind = f.Operator, arityScalar
	}

	switch kind {
	case arityNone:
		return fmt.Sprintf("%s %s", field, op), nil

	case arityList:
		items, ok := listValues(f.Value)
		if !ok {
			return fmt.Sprintf("%s IN (%s)", field, b.bind(f.Value)), nil
		}

		placeholders := make([]string, len(items))
		for i, item := range items {
			placeholders[i] = b.bind(item)
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), nil

	default:
		return fmt.Sprintf("%s %s %s", field, op, b.bind(f.Value)), nil
	}
}

func (b *builder) columns(cols []string) (string, error) {
	if len(cols) == 0 {
		return "*", nil
	}

	quoted := make([]string, len(cols))
	for i, col := range cols {
		q, err := b.identifier("columns", col)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

// identifier validates name and returns it double-quoted.
func (b *builder) identifier(field, name string) (string, error) {
	if name == "" {
		return "", invalid(field, "Identifier cannot be empty.")
	}

	if b.opts.IdentifierPattern != nil && !b.opts.IdentifierPattern.MatchString(name) {
		return "", invalid(field, fmt.Sprintf("%q is not a valid identifier.", name))
	}

	return QuoteIdentifier(name), nil
}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// listValues flattens slices and arrays for IN. Byte slices are scalars.
func listValues(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
