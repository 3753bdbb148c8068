package dispatch

import "errors"

// ErrInvalidRequest indicates the deployment request is missing required fields.
var ErrInvalidRequest = errors.New("dispatch: invalid request")

// ErrDispatchFailed indicates the task executor did not accept the run request.
var ErrDispatchFailed = errors.New("dispatch: submission failed")
