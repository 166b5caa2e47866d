package publish

import (
	"fmt"
	"sort"
)

// CriticalError is an error that can be wrapped with additional info.
type CriticalError struct {
	msg string
	err error
}

func (e *CriticalError) Error() string {
	return e.msg
}

func (e *CriticalError) Unwrap() error {
	return e.err
}

func NewCriticalError(err error) *CriticalError {
	return &CriticalError{msg: err.Error(), err: err}
}

// Wrap appends key=value pairs in key order.
func (e *CriticalError) Wrap(params map[string]interface{}) *CriticalError {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.msg += fmt.Sprintf(" %s=%v", k, params[k])
	}
	return e
}
