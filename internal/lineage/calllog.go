package lineage

import (
	"strings"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
)

// CallLogRow is one line of the grouped call log: a root leg followed by its
// descendants.
type CallLogRow struct {
	cdr.CallEvent

	GroupID     string `json:"group_id"`
	IsRoot      bool   `json:"is_root"`
	HasChildren bool   `json:"has_children"`
}

// CallLog flattens groups newest root first. A non-empty search keeps the whole
// group when the root or any descendant matches it, case-insensitively.
func CallLog(groups map[string]*Group, search string) []CallLogRow {
	needle := strings.ToLower(strings.TrimSpace(search))

	rows := make([]CallLogRow, 0)

	for _, rootID := range SortedRootIDs(groups) {
		group := groups[rootID]

		if needle != "" && !groupMatches(group, needle) {
			continue
		}

		rows = append(rows, CallLogRow{
			CallEvent:   group.Root,
			GroupID:     rootID,
			IsRoot:      true,
			HasChildren: len(group.Descendants) > 0,
		})

		for _, child := range group.Descendants {
			rows = append(rows, CallLogRow{CallEvent: child, GroupID: rootID})
		}
	}

	return rows
}

func groupMatches(group *Group, needle string) bool {
	if eventMatches(&group.Root, needle) {
		return true
	}

	for idx := range group.Descendants {
		if eventMatches(&group.Descendants[idx], needle) {
			return true
		}
	}

	return false
}

func eventMatches(event *cdr.CallEvent, needle string) bool {
	fields := []string{
		event.CallID,
		string(event.Status),
		event.StatusDetail,
		event.CallingNumber,
		event.EnterDatetime.UTC().Format(time.RFC3339),
	}

	for _, optional := range []*string{event.ParentCallID, event.QueueName, event.CallingForward, event.Agent} {
		if optional != nil {
			fields = append(fields, *optional)
		}
	}

	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}

	return false
}
