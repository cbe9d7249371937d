package engine

import "errors"

var (
	// ErrInvalidOperation is returned when the engine is started outside neutral.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrEngineOff is returned when a gear change is attempted with the engine off.
	ErrEngineOff = errors.New("engine is off")
	// ErrInvalidGear is returned for gears outside [-1,5].
	ErrInvalidGear = errors.New("invalid gear")
	// ErrClutchNotDisengaged is returned when shifting without pressing the clutch.
	ErrClutchNotDisengaged = errors.New("clutch not disengaged")
	// ErrInvalidInput is returned by Apply for unknown actions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState is returned by SetState for out-of-range state values.
	ErrInvalidState = errors.New("invalid state")
)

// Stable error codes used by the service and transport layers.
const (
	CodeInvalidOperation    = "invalid_operation"
	CodeEngineOff           = "engine_off"
	CodeInvalidGear         = "invalid_gear"
	CodeClutchNotDisengaged = "clutch_not_disengaged"
	CodeInvalidInput        = "invalid_input"
	CodeInvalidState        = "invalid_state"
	CodeUnknown             = "unknown"
)

// ErrorCode maps an engine error to its stable code. It returns "" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOperation):
		return CodeInvalidOperation
	case errors.Is(err, ErrEngineOff):
		return CodeEngineOff
	case errors.Is(err, ErrInvalidGear):
		return CodeInvalidGear
	case errors.Is(err, ErrClutchNotDisengaged):
		return CodeClutchNotDisengaged
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	default:
		return CodeUnknown
	}
}

// IsRejection reports whether err is one of the engine's input rejections,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	code := ErrorCode(err)
	return code != "" && code != CodeUnknown
}
