package querier

import "testing"

func TestOperatorTableIsExhaustive(t *testing.T) {
	tests := map[Operator]arity{
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

	if len(operators) != len(tests) {
		t.Fatalf("operator table has %d entries, want %d", len(operators), len(tests))
	}

	for op, want := range tests {
		actual, ok := operators[op]
		if !ok {
			t.Fatalf("operator %q is missing from the table", op)
		}
		if actual != want {
			t.Fatalf("operator %q has arity %d, want %d", op, actual, want)
		}
	}
}

func TestOperatorKnown(t *testing.T) {
	tests := map[Operator]bool{
		"=":            true,
		"not   like":   true,
		" is not null": true,
		"in":           true,
		"!=":           false,
		"~*":           false,
		"BETWEEN":      false,
	}

	for op, want := range tests {
		if actual := op.Known(); actual != want {
			t.Fatalf("Operator(%q).Known() = %v, want %v", op, actual, want)
		}
	}
}
