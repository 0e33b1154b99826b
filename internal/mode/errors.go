// Package mode implements the mode registry and the transition arbitration core.
package mode

import "errors"

var (
	// ErrUnknownMode is returned when a query names a mode that is not registered.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrManualSwitchDisabled is returned for manual switch requests while
	// allow_manual_switching is off. The current mode is unaffected.
	ErrManualSwitchDisabled = errors.New("manual switching is disabled")
)
