package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedulingInPast is wrapped by every SchedulingError.
	ErrSchedulingInPast = errors.New("event scheduled at or before the current slot")
	// ErrInvalidConfig is wrapped by every ConfigurationError.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrEngineClosed is returned when scheduling on an engine torn down by Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrCellOccupied is returned when adding a cell at a (timeslot, channel)
	// the schedule already holds.
	ErrCellOccupied = errors.New("cell already scheduled at timeslot/channel")
	// ErrCellNotFound is returned when removing a cell that is not scheduled.
	ErrCellNotFound = errors.New("no cell at timeslot/channel")
)

// SchedulingError reports an event registered for a slot that is not strictly
// in the future. It signals a defect in the calling code and is never retried.
type SchedulingError struct {
	Target  ASN
	Current ASN
	Tag     Tag
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("cannot schedule %s at slot %d: current slot is %d", e.Tag, e.Target, e.Current)
}

func (e *SchedulingError) Unwrap() error { return ErrSchedulingInPast }

// ConfigurationError reports an invalid RunConfig field, surfaced before the run starts.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfig }
