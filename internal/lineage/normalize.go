package lineage

import (
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
)

// NormalizeResult describes what Normalize changed in a batch.
type NormalizeResult struct {
	Flattened int
	Cleared   int
	Stats     Stats
}

// Normalize rewrites the parent_call_id of every batch record so that it points at
// the ultimate ancestor of its declared parent, flattening multi-hop transfer chains
// to a single hop. Parents are looked up in stored and batch together. Self
// references are cleared; parents missing from both collections are left untouched.
// Running it again on its own output changes nothing.
func Normalize(stored, batch []cdr.CallEvent) NormalizeResult {
	combined := make([]cdr.CallEvent, 0, len(stored)+len(batch))
	combined = append(combined, stored...)
	combined = append(combined, batch...)

	resolver := NewResolver(combined)

	var result NormalizeResult

	for idx := range batch {
		event := &batch[idx]

		if event.ParentCallID == nil {
			continue
		}

		parentID := *event.ParentCallID

		if parentID == "" || parentID == event.CallID {
			event.ParentCallID = nil
			result.Cleared++

			continue
		}

		root := resolver.UltimateAncestor(parentID)
		if root == parentID || root == event.CallID {
			continue
		}

		event.ParentCallID = &root
		result.Flattened++
	}

	result.Stats = resolver.Stats()

	return result
}
