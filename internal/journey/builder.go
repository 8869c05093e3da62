package journey

import (
	"slices"
	"sort"
	"strings"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/lineage"
)

// Build classifies every leg known to resolver and sequences the events of each
// logical call. Groups are emitted by their first event time, then call_id, so the
// output only depends on the set of legs and the relative order of legs sharing
// a timestamp.
func Build(resolver *lineage.Resolver) []Event {
	legs := resolver.Events()
	grouped := make(map[string][]Event)

	for idx := range legs {
		event, ok := Classify(&legs[idx], resolver.UltimateAncestor(legs[idx].CallID))
		if !ok {
			continue
		}

		grouped[event.CallID] = append(grouped[event.CallID], event)
	}

	rootIDs := make([]string, 0, len(grouped))

	for rootID, events := range grouped {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Datetime.Before(events[j].Datetime)
		})

		rootIDs = append(rootIDs, rootID)
	}

	slices.SortFunc(rootIDs, func(a, b string) int {
		if order := grouped[a][0].Datetime.Compare(grouped[b][0].Datetime); order != 0 {
			return order
		}

		return strings.Compare(a, b)
	})

	result := make([]Event, 0, len(legs))
	for _, rootID := range rootIDs {
		result = append(result, AssignPathAndDuration(grouped[rootID])...)
	}

	return result
}

// AssignPathAndDuration fills ivr_path and duration on events, which must already
// be sorted by time and belong to one logical call. ivr_path is the route taken
// before the event; duration is the time until the next event and stays nil on
// the last one.
func AssignPathAndDuration(events []Event) []Event {
	currentPath := RootPath

	for idx := range events {
		event := &events[idx]

		event.Duration = nil
		if idx < len(events)-1 {
			seconds := events[idx+1].Datetime.Sub(event.Datetime).Seconds()
			event.Duration = &seconds
		}

		event.IvrPath = currentPath
		currentPath = appendComponent(currentPath, pathComponent(event))
	}

	return events
}

func pathComponent(event *Event) string {
	if event.EventType == EventKeyPress {
		return KeypressLabel
	}

	if event.QueueName == nil {
		return ""
	}

	return *event.QueueName
}

// appendComponent extends path unless component is empty or already its last
// segment.
func appendComponent(path, component string) string {
	if component == "" || strings.HasSuffix(path, component) {
		return path
	}

	return path + PathSeparator + component
}
