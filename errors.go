package xrelay

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelClosed matches every ChannelClosedError regardless of identity type.
	ErrChannelClosed = errors.New("xrelay: channel closed")
	// ErrTargetUnreachable matches every TargetUnreachableError regardless of identity type.
	ErrTargetUnreachable = errors.New("xrelay: target unreachable")
	// ErrTaskExecution matches every TaskExecutionError.
	ErrTaskExecution = errors.New("xrelay: task execution failed")
	// ErrRoutineFailed matches every RoutineError.
	ErrRoutineFailed = errors.New("xrelay: routine failed")
	// ErrAlreadyConnected matches every AlreadyConnectedError regardless of identity type.
	ErrAlreadyConnected = errors.New("xrelay: identity already connected")

	ErrMediatorRunning = errors.New("xrelay: mediator is running; connect before Run")
	ErrAlreadyRunning  = errors.New("xrelay: mediator Run called twice")
	ErrAlreadyRun      = errors.New("xrelay: manager Run called twice")

	// ErrEmpty is returned by Connector.TryRecv when no message is queued.
	ErrEmpty = errors.New("xrelay: no message available")
	// ErrDisconnected is returned by Connector.TryRecv after end-of-stream.
	ErrDisconnected = errors.New("xrelay: connector disconnected")

	ErrObserverPoolShutdownTimeout = errors.New("xrelay: observer pool shutdown timeout")
)

// ChannelClosedError reports a delivery whose receiving side was already dropped.
type ChannelClosedError[E comparable] struct {
	From E
	To   E
}

func (e *ChannelClosedError[E]) Error() string {
	return fmt.Sprintf("channel between %v and %v is closed", e.From, e.To)
}

func (e *ChannelClosedError[E]) Is(target error) bool { return target == ErrChannelClosed }

// TargetUnreachableError reports a destination with no registry entry, or a
// forwarder whose own source disconnected when FailOnDisconnect is set.
type TargetUnreachableError[E comparable] struct {
	Target E
}

func (e *TargetUnreachableError[E]) Error() string {
	return fmt.Sprintf("target %v is disconnected or hasn't been registered", e.Target)
}

func (e *TargetUnreachableError[E]) Is(target error) bool { return target == ErrTargetUnreachable }

// AlreadyConnectedError is returned by Connect for an identity that already owns a tunnel pair.
type AlreadyConnectedError[E comparable] struct {
	Identity E
}

func (e *AlreadyConnectedError[E]) Error() string {
	return fmt.Sprintf("identity %v is already connected", e.Identity)
}

func (e *AlreadyConnectedError[E]) Is(target error) bool { return target == ErrAlreadyConnected }

// TaskExecutionError reports a goroutine that terminated by panicking instead
// of returning its declared result.
type TaskExecutionError struct {
	Routine string
	Index   int
	Value   any
	Stack   []byte
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task execution failed: routine %q (#%d) panicked: %v", e.Routine, e.Index, e.Value)
}

func (e *TaskExecutionError) Is(target error) bool { return target == ErrTaskExecution }

// RoutineError wraps the failure a routine returned from Run.
type RoutineError struct {
	Routine string
	Index   int
	Err     error
}

func (e *RoutineError) Error() string {
	return fmt.Sprintf("routine %q (#%d) failed: %v", e.Routine, e.Index, e.Err)
}

func (e *RoutineError) Unwrap() error { return e.Err }

func (e *RoutineError) Is(target error) bool { return target == ErrRoutineFailed }
