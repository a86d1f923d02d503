package core

import (
	"errors"
	"fmt"
)

var (
	ErrPrinterOffline  = errors.New("printer is offline")
	ErrSpoolerRejected = errors.New("spooler rejected job")
	ErrNoNextCursor    = errors.New("upstream reported another page without a cursor")
)

// UpstreamError aborts one aggregation pass. The pass is retried on the next
// scheduled poll.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type RenderError struct {
	OrderName string
	Index     int
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render label %s #%d: %v", e.OrderName, e.Index, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// PrintError carries the subsystem's failure reason verbatim; it becomes the
// job's "Failed: <reason>" status.
type PrintError struct {
	OrderName string
	Index     int
	Reason    string
	Err       error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("print label %s #%d: %s", e.OrderName, e.Index, e.Reason)
}

func (e *PrintError) Unwrap() error {
	return e.Err
}
