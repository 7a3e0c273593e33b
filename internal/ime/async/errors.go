package async

import "fmt"

// PanicError carries a panic recovered from a function started with Go.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: panic: %v", e.Value)
}
