package application

import "time"

// OperationRecorder observes the outcome of store operations. kind is the
// ErrorKind of the result and empty on success.
type OperationRecorder interface {
	ObserveOperation(store, operation, kind string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, string, time.Duration) {}

func defaultRecorder(r OperationRecorder) OperationRecorder {
	if r != nil {
		return r
	}
	return noopRecorder{}
}
