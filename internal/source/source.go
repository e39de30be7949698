// Package source converts raw evidence channels (build logs, browser
// state, health probes) into normalized error events.
package source

import (
	"context"

	"fixloop/internal/event"
)

// Adapter reads one evidence channel and emits candidate events.
// Collect never fails: an unavailable or malformed source logs a
// warning and yields nil, so one dead channel cannot abort a cycle.
type Adapter interface {
	Name() string
	Collect(ctx context.Context, cycle int) []event.Event
}
