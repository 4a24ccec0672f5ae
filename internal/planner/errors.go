package planner

import "errors"

// HTTPError is a pipeline failure with a wire representation: an HTTP status,
// a machine-readable code, and optional diagnostic context merged into the
// error body.
type HTTPError struct {
	Status int
	Code   string
	Extra  map[string]any
}

func (e *HTTPError) Error() string {
	return "planner: " + e.Code
}

// Body renders the JSON error object: {"error": code} plus Extra.
func (e *HTTPError) Body() map[string]any {
	body := map[string]any{"error": e.Code}
	for k, v := range e.Extra {
		body[k] = v
	}
	return body
}

func newHTTPError(status int, code string, extra map[string]any) *HTTPError {
	return &HTTPError{Status: status, Code: code, Extra: extra}
}

// AsHTTPError unwraps err to an HTTPError if one is in the chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
