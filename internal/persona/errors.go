package persona

import (
	"fmt"
	"strings"
)

// SchemaError reports that the uploaded table lacks one or more required columns.
type SchemaError struct {
	Required []string
	Missing  []string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("CSV must contain columns: %s", strings.Join(e.Required, ", "))
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing: %s)", strings.Join(e.Missing, ", "))
	}
	return msg
}

// EmptyDataError reports that no usable transaction rows remain.
type EmptyDataError struct {
	Reason string
}

func (e *EmptyDataError) Error() string {
	return e.Reason
}

// AdapterError reports that the fitted scaler or classifier rejected the input.
// It always points at a packaging mismatch between the artifacts and the extractor.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("model adapter %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
