package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	Unauthorized   Code = "unauthorized"
	Timeout        Code = "timeout"

	// HAL
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	UnknownPin        Code = "unknown_pin"
	PinInUse          Code = "pin_in_use"

	// Brew sequencer / triggers
	UnknownAction    Code = "unknown_action"
	OutOfRange       Code = "out_of_range"
	NotRunning       Code = "not_running"
	HardwareMismatch Code = "hardware_mismatch"

	// Kiosk API
	Unreachable Code = "unreachable"
	BadResponse Code = "bad_response"

	Error Code = "error" // generic fallback
)

// E keeps a code together with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New is shorthand for &E{C: c, Op: op, Msg: msg}.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap attaches a code and operation to err. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
