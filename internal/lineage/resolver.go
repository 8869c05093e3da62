// Package lineage resolves transfer chains between call legs. Every leg is mapped to
// its ultimate ancestor, the first leg of the logical call, by following
// parent_call_id links. Missing parents, self references and cycles never abort a
// walk: they end it at a deterministic root.
package lineage

import (
	"slices"
	"sort"
	"strings"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
)

// Group is one logical call: the ultimate ancestor and every leg that resolves to it.
type Group struct {
	Root        cdr.CallEvent
	Descendants []cdr.CallEvent
}

// Stats counts the data-quality anomalies met while resolving. Each anomaly is
// counted once no matter how many legs lead to it.
type Stats struct {
	Orphans        int
	Cycles         int
	SelfReferences int
}

type Resolver struct {
	events []cdr.CallEvent
	index  map[string]int
	roots  map[string]string
	stats  Stats
}

// NewResolver indexes events by call_id. When a call_id repeats, the first
// occurrence wins.
func NewResolver(events []cdr.CallEvent) *Resolver {
	owned := make([]cdr.CallEvent, len(events))
	copy(owned, events)

	index := make(map[string]int, len(owned))
	for idx := range owned {
		if _, ok := index[owned[idx].CallID]; !ok {
			index[owned[idx].CallID] = idx
		}
	}

	return &Resolver{
		events: owned,
		index:  index,
		roots:  make(map[string]string, len(owned)),
	}
}

// Events returns the resolver's copy of the input, in input order.
func (r *Resolver) Events() []cdr.CallEvent {
	return r.events
}

// Stats returns the anomalies found by the walks performed so far.
func (r *Resolver) Stats() Stats {
	return r.stats
}

// UltimateAncestor returns the call_id of the root leg for callID. Unknown ids are
// their own root.
func (r *Resolver) UltimateAncestor(callID string) string {
	idx, ok := r.index[callID]
	if !ok {
		return callID
	}

	return r.resolve(idx)
}

func (r *Resolver) resolve(start int) string {
	startID := r.events[start].CallID
	if root, ok := r.roots[startID]; ok {
		return root
	}

	path := []int{start}
	onPath := map[string]int{startID: 0}
	current := start
	root := ""

	for range len(r.events) {
		event := &r.events[current]

		if event.ParentCallID == nil || *event.ParentCallID == "" {
			root = event.CallID
			break
		}

		parentID := *event.ParentCallID

		if parentID == event.CallID {
			r.stats.SelfReferences++
			root = event.CallID

			break
		}

		if memo, ok := r.roots[parentID]; ok {
			root = memo
			break
		}

		parentIdx, ok := r.index[parentID]
		if !ok {
			r.stats.Orphans++
			root = event.CallID

			break
		}

		if pos, ok := onPath[parentID]; ok {
			r.stats.Cycles++
			root = r.cycleRoot(path[pos:])

			break
		}

		onPath[parentID] = len(path)
		path = append(path, parentIdx)
		current = parentIdx
	}

	if root == "" {
		root = r.events[current].CallID
	}

	for _, idx := range path {
		r.roots[r.events[idx].CallID] = root
	}

	return root
}

// cycleRoot picks the earliest leg of a cycle, breaking ties on call_id, so the
// choice does not depend on where the walk entered the cycle.
func (r *Resolver) cycleRoot(members []int) string {
	best := members[0]

	for _, idx := range members[1:] {
		candidate, current := &r.events[idx], &r.events[best]

		if candidate.EnterDatetime.Before(current.EnterDatetime) ||
			(candidate.EnterDatetime.Equal(current.EnterDatetime) && candidate.CallID < current.CallID) {
			best = idx
		}
	}

	return r.events[best].CallID
}

// Groups maps every ultimate ancestor to its group. Descendants are ordered by
// enter_datetime, keeping input order between equal timestamps.
func (r *Resolver) Groups() map[string]*Group {
	groups := make(map[string]*Group)

	for idx := range r.events {
		event := r.events[idx]
		root := r.resolve(idx)

		group, ok := groups[root]
		if !ok {
			group = &Group{}
			groups[root] = group
		}

		if r.index[root] == idx {
			group.Root = event
			continue
		}

		group.Descendants = append(group.Descendants, event)
	}

	for _, group := range groups {
		sort.SliceStable(group.Descendants, func(i, j int) bool {
			return group.Descendants[i].EnterDatetime.Before(group.Descendants[j].EnterDatetime)
		})
	}

	return groups
}

// GroupCalls resolves events and returns their groups with the anomalies found.
func GroupCalls(events []cdr.CallEvent) (map[string]*Group, Stats) {
	resolver := NewResolver(events)
	groups := resolver.Groups()

	return groups, resolver.Stats()
}

// SortedRootIDs returns the keys of groups, newest root first.
func SortedRootIDs(groups map[string]*Group) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b string) int {
		left, right := groups[a].Root.EnterDatetime, groups[b].Root.EnterDatetime
		if order := right.Compare(left); order != 0 {
			return order
		}

		return strings.Compare(a, b)
	})

	return ids
}
