package fault

import "fmt"

type faultCode string

const (
	UnknownCode          faultCode = "unknown"
	NotFoundCode         faultCode = "not_found"
	BadInputCode         faultCode = "bad_input"
	PermissionDeniedCode faultCode = "permission_denied"
	UnsupportedCode      faultCode = "unsupported"
)

// FieldErrorsMetadata maps request fields to the problems found in them.
type FieldErrorsMetadata map[string][]string

// Fault is an error carrying a code the transport layer can map to a status.
type Fault struct {
	code     faultCode
	message  string
	metadata any
	original error
}

func New(code faultCode, message string) Fault {
	return Fault{
		code:    code,
		message: message,
	}
}

// BadInput is a shorthand for a BadInputCode fault describing a single field.
func BadInput(field, problem string) Fault {
	return New(BadInputCode, "").WithMetadata(FieldErrorsMetadata{field: []string{problem}})
}

func (f Fault) WithMetadata(metadata any) Fault {
	e := f
	e.metadata = metadata
	return e
}

func (f Fault) WithOriginal(original error) Fault {
	e := f
	e.original = original
	return e
}

func (f Fault) Code() faultCode {
	return f.code
}

func (f Fault) Message() string {
	return f.message
}

func (f Fault) Metadata() any {
	return f.metadata
}

func (f Fault) Original() error {
	return f.original
}

func (f Fault) Unwrap() error {
	return f.original
}

func (f Fault) Error() string {
	msg := f.message
	if msg == "" {
		msg = string(f.code)
		if md, ok := f.metadata.(FieldErrorsMetadata); ok {
			msg = fmt.Sprintf("%s %v", msg, map[string][]string(md))
		}
	}

	if f.original != nil {
		return fmt.Sprintf("%s: %v", msg, f.original)
	}
	return msg
}
