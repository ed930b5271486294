package dispatch

import "errors"

var ErrNoOperations = errors.New("no operations")
