package narrator

import "errors"

// State is the engine lifecycle. Loading ends in Ready or Failed; both are final.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNotReady     = errors.New("narrator: engine not ready")
	ErrEngineFailed = errors.New("narrator: engine failed to load")
	ErrSuperseded   = errors.New("narrator: superseded by a newer utterance")
	ErrStopped      = errors.New("narrator: stopped")
	ErrClosed       = errors.New("narrator: engine closed")
)
