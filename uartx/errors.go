package uartx

import (
	"errors"
	"fmt"
)

var (
	// ErrBadConfig is wrapped by every *ConfigError.
	ErrBadConfig = errors.New("invalid UART configuration")

	// ErrNotInitialized is returned by transfers issued before Init/InitCustom.
	ErrNotInitialized = errors.New("UART not initialized")

	// ErrBusy is returned when a transfer is issued while the same direction
	// already has one outstanding. Nothing is queued.
	ErrBusy = errors.New("UART direction busy")

	// ErrNotDone is returned by TxResult/RxResult when no completed transfer
	// is waiting to be consumed.
	ErrNotDone = errors.New("UART transfer not done")

	// ErrInvalidSize is returned for empty buffers or buffers longer than
	// MaxTransfer.
	ErrInvalidSize = errors.New("invalid transfer size")

	// ErrInvalidTerminator is returned for a terminator outside 0..255 or a
	// terminator passed to a send.
	ErrInvalidTerminator = errors.New("invalid terminator")

	// ErrCritTooLong is returned when a critical transfer exceeds the
	// configured masked-window limit.
	ErrCritTooLong = errors.New("critical transfer too long")

	// ErrTimeout is wrapped by errors from transfers that did not complete in
	// time. The transfer is aborted and the buffer released.
	ErrTimeout = errors.New("UART transfer timeout")

	// ErrInvalidVector is returned when registering a handler for a vector
	// outside the table.
	ErrInvalidVector = errors.New("invalid interrupt vector")

	// ErrVectorInUse is returned when registering over the driver's own
	// RX/TX handlers.
	ErrVectorInUse = errors.New("interrupt vector in use")
)

// ConfigError describes a rejected clock/baud combination.
type ConfigError struct {
	ClockHz  uint32
	BaudRate uint32
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("uart: clock %d Hz, baud %d: %s", e.ClockHz, e.BaudRate, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrBadConfig }
