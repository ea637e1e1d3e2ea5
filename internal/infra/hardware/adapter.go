// Package hardware defines the NFC reader adapter boundary.
//
// The control layer consumes readers through the Adapter interface
// only; driver internals (serial framing, polling registers) stay
// behind it.
package hardware

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnavailable  = errors.New("hardware unavailable")
	ErrNotDetecting = errors.New("detection is not running")
)

// Status reports reader health for status queries.
type Status struct {
	Available bool
	Detecting bool
	Driver    string
	LastError string
}

// Adapter is the narrow protocol an NFC reader driver exposes.
// StartDetection and StopDetection are idempotent. Callbacks are
// invoked from the driver's own goroutine and must not block.
type Adapter interface {
	StartDetection(ctx context.Context) error
	StopDetection(ctx context.Context) error
	SetTagDetectedCallback(fn func(uid string))
	SetTagRemovedCallback(fn func())
	Status() Status
	IsDetecting() bool
}
