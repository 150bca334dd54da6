package util

import (
	"github.com/kode4food/timebox"
)

// Raise marshals an event and raises it through the aggregator
func Raise[T, E any](
	ag *timebox.Aggregator[T], eventType timebox.EventType, event E,
) error {
	return timebox.Raise(ag, eventType, event)
}
