//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates the grouping done by the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: one event per distinct path, in path order
	properties.Property("flush deduplicates by path", prop.ForAll(
		func(ids []int) bool {
			if len(ids) == 0 {
				return true
			}

			d := newDebouncer(time.Hour)
			distinct := make(map[string]struct{})
			for _, id := range ids {
				path := fmt.Sprintf("/site/page%d.html", id)
				distinct[path] = struct{}{}
				d.pending = append(d.pending, ChangeEvent{Path: path})
			}

			d.flush()
			events := <-d.output

			if len(events) != len(distinct) {
				return false
			}
			return sort.SliceIsSorted(events, func(i, j int) bool {
				return events[i].Path < events[j].Path
			})
		},
		gen.SliceOf(gen.IntRange(0, 15)),
	))

	// Property: the last event for a path wins
	properties.Property("last event wins", prop.ForAll(
		func(types []int) bool {
			if len(types) == 0 {
				return true
			}

			d := newDebouncer(time.Hour)
			for _, ty := range types {
				d.pending = append(d.pending, ChangeEvent{Type: EventType(ty), Path: "/site/a.html"})
			}

			d.flush()
			events := <-d.output
			return len(events) == 1 && events[0].Type == EventType(types[len(types)-1])
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
