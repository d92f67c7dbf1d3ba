package api

import "fmt"

// FetchError is a failed list request (statuses or tasks). Callers degrade to an empty
// collection.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// SchemaError lists the ways a payload failed validation.
type SchemaError struct {
	Resource string
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s payload does not match schema", e.Resource)
	}
	return fmt.Sprintf("%s payload does not match schema: %s", e.Resource, e.Problems[0])
}
