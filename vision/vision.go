// Package vision sends images to an external vision model for object
// identification and parses the structured result.
package vision

import (
	"context"
	"fmt"
)

// Result is one analysis outcome. All three fields are always populated on a
// successful return; missing response fields are filled with safe defaults.
type Result struct {
	ObjectName  string  `json:"object_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// defaults used when the model response omits a field
const (
	DefaultObjectName  = "Unknown object"
	DefaultDescription = "No description available"
	DefaultConfidence  = 0.5
)

// Analyzer identifies the main object in an image. Implementations must treat
// the call as a multi-second network round trip; callers must not hold store
// transactions open across it.
type Analyzer interface {
	Analyze(ctx context.Context, imageData []byte, mimeType string) (*Result, error)
}

// TerminalError is returned once every retry attempt has failed. It wraps the
// last attempt's error.
type TerminalError struct {
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("vision analysis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}
