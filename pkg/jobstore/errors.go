package jobstore

import "errors"

// ErrJobNotFound indicates no job record exists for the given id.
var ErrJobNotFound = errors.New("job record not found")
