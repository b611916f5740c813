package fault

import (
	"errors"
	"testing"
)

func TestFaultError(t *testing.T) {
	sentinel := errors.New("boom")

	tests := map[string]struct {
		f    Fault
		want string
	}{
		"message only": {
			f:    New(NotFoundCode, "Record not found."),
			want: "Record not found.",
		},
		"message with original": {
			f:    New(UnknownCode, "cannot store").WithOriginal(sentinel),
			want: "cannot store: boom",
		},
		"field metadata without message": {
			f:    BadInput("limit", "Must not be negative."),
			want: "bad_input map[limit:[Must not be negative.]]",
		},
	}

	for name, tt := range tests {
		if got := tt.f.Error(); got != tt.want {
			t.Fatalf("%s: Error() = %q, want %q", name, got, tt.want)
		}
	}
}

func TestFaultUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	var err error = New(BadInputCode, "bad").WithOriginal(sentinel)

	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is(%v, sentinel) = false, want true", err)
	}

	var f Fault
	if !errors.As(err, &f) || f.Code() != BadInputCode {
		t.Fatalf("errors.As did not recover the fault code, got %+v", f)
	}
}

func TestWithMetadataDoesNotMutate(t *testing.T) {
	base := New(BadInputCode, "bad")
	_ = base.WithMetadata("x")

	if base.Metadata() != nil {
		t.Fatalf("base metadata = %v, want nil", base.Metadata())
	}
}
