package journey

import (
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(events []Event) []string {
	result := make([]string, 0, len(events))
	for _, event := range events {
		result = append(result, event.IvrPath)
	}

	return result
}

func TestAssignDurations(t *testing.T) {
	events := []Event{
		{Datetime: baseTime, EventType: EventKeyPress},
		{Datetime: baseTime.Add(5 * time.Second), EventType: EventKeyPress},
		{Datetime: baseTime.Add(12 * time.Second), EventType: EventTimeout},
	}

	result := AssignPathAndDuration(events)

	require.Len(t, result, 3)
	require.NotNil(t, result[0].Duration)
	require.NotNil(t, result[1].Duration)
	assert.InDelta(t, 5.0, *result[0].Duration, 1e-9)
	assert.InDelta(t, 7.0, *result[1].Duration, 1e-9)
	assert.Nil(t, result[2].Duration)
}

func TestAssignPathSuppressesRepeatedQueue(t *testing.T) {
	events := []Event{
		{Datetime: baseTime, EventType: EventExitIVR, QueueName: ptr("Support")},
		{Datetime: baseTime.Add(1 * time.Second), EventType: EventExitIVR, QueueName: ptr("Support")},
		{Datetime: baseTime.Add(2 * time.Second), EventType: EventTimeout},
	}

	result := AssignPathAndDuration(events)

	assert.Equal(t, []string{"Entry", "Entry -> Support", "Entry -> Support"}, paths(result))
}

func TestAssignPathKeypressAndQueues(t *testing.T) {
	events := []Event{
		{Datetime: baseTime, EventType: EventKeyPress, QueueName: ptr("Main")},
		{Datetime: baseTime.Add(1 * time.Second), EventType: EventKeyPress},
		{Datetime: baseTime.Add(2 * time.Second), EventType: EventExitIVR, QueueName: ptr("Sales")},
		{Datetime: baseTime.Add(3 * time.Second), EventType: EventExitIVR, QueueName: ptr("Support")},
		{Datetime: baseTime.Add(4 * time.Second), EventType: EventTimeout},
	}

	result := AssignPathAndDuration(events)

	assert.Equal(t, []string{
		"Entry",
		"Entry -> Keypress",
		"Entry -> Keypress",
		"Entry -> Keypress -> Sales",
		"Entry -> Keypress -> Sales -> Support",
	}, paths(result))
}

func TestAssignPathSkipsComponentAlreadyAtPathEnd(t *testing.T) {
	events := []Event{
		{Datetime: baseTime, EventType: EventExitIVR, QueueName: ptr("Premium Support")},
		{Datetime: baseTime.Add(1 * time.Second), EventType: EventExitIVR, QueueName: ptr("Support")},
		{Datetime: baseTime.Add(2 * time.Second), EventType: EventTimeout},
	}

	result := AssignPathAndDuration(events)

	assert.Equal(t, "Entry -> Premium Support", result[1].IvrPath)
	assert.Equal(t, "Entry -> Premium Support", result[2].IvrPath)
}

func TestBuildGroupsTransferLegsUnderRoot(t *testing.T) {
	resolver := lineage.NewResolver([]cdr.CallEvent{
		newLeg("C", 30, cdr.StatusCompleted, "Incoming", withParent("B"), withQueue("Support"), withTimeInQueue(12)),
		newLeg("A", 0, cdr.StatusIVR, "Redirect by digit press to sales", withForward("200"), withQueue("Main")),
		newLeg("B", 10, cdr.StatusIVR, "direct redirect", withParent("A"), withForward("300"), withQueue("Sales")),
		newLeg("X", 5, cdr.StatusRedirected, "Transferred"),
	})

	events := Build(resolver)

	require.Len(t, events, 3)

	for _, event := range events {
		assert.Equal(t, "A", event.CallID)
	}

	assert.Equal(t, []string{"A", "B", "C"}, []string{events[0].LegCallID, events[1].LegCallID, events[2].LegCallID})
	assert.Equal(t, []EventType{EventKeyPress, EventExitIVR, EventExitIVR},
		[]EventType{events[0].EventType, events[1].EventType, events[2].EventType})
	assert.Equal(t, []string{"Entry", "Entry -> Keypress", "Entry -> Keypress -> Sales"}, paths(events))

	require.NotNil(t, events[0].Duration)
	require.NotNil(t, events[1].Duration)
	assert.InDelta(t, 10.0, *events[0].Duration, 1e-9)
	assert.InDelta(t, 20.0, *events[1].Duration, 1e-9)
	assert.Nil(t, events[2].Duration)
}

func TestBuildOrdersGroupsByFirstEvent(t *testing.T) {
	resolver := lineage.NewResolver([]cdr.CallEvent{
		newLeg("LATE", 100, cdr.StatusIVR, "IVR hangup by timeout"),
		newLeg("EARLY", 0, cdr.StatusIVR, "IVR hangup by timeout"),
		newLeg("TIE-B", 50, cdr.StatusIVR, "IVR hangup by timeout"),
		newLeg("TIE-A", 50, cdr.StatusIVR, "IVR hangup by timeout"),
	})

	events := Build(resolver)

	require.Len(t, events, 4)
	assert.Equal(t, []string{"EARLY", "TIE-A", "TIE-B", "LATE"},
		[]string{events[0].CallID, events[1].CallID, events[2].CallID, events[3].CallID})

	for _, event := range events {
		assert.Equal(t, RootPath, event.IvrPath)
		assert.Nil(t, event.Duration)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	legs := []cdr.CallEvent{
		newLeg("A", 0, cdr.StatusIVR, "redirect by digit press", withForward("200"), withQueue("Main")),
		newLeg("B", 8, cdr.StatusIVR, "direct redirect", withParent("A"), withForward("300"), withQueue("Sales")),
		newLeg("C", 20, cdr.StatusCompleted, "Incoming", withParent("B"), withQueue("Sales"), withTimeInQueue(3)),
		newLeg("D", 3, cdr.StatusIVR, "IVR hangup by timeout", withQueue("Main")),
		newLeg("E", 4, cdr.StatusAbandoned, "Abandoned", withParent("D")),
	}

	first := Build(lineage.NewResolver(legs))
	second := Build(lineage.NewResolver(legs))

	assert.Equal(t, first, second)
}

func TestBuildExcludesUnclassifiedLegs(t *testing.T) {
	resolver := lineage.NewResolver([]cdr.CallEvent{
		newLeg("R", 0, cdr.StatusRedirected, "Transferred by operator"),
	})

	assert.Empty(t, Build(resolver))
}

func TestBuildEmptyInput(t *testing.T) {
	assert.Empty(t, Build(lineage.NewResolver(nil)))
}
