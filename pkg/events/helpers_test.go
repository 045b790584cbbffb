package events_test

import "time"

const (
	defaultEventualTimeout = 2 * time.Second
	defaultEventualTick    = 20 * time.Millisecond
)
