package journey

import (
	"strings"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
)

const (
	detailHangupByTimeout = "hangup by timeout"
	detailDigitRedirect   = "redirect by digit press"
	detailDirectRedirect  = "direct redirect"
)

// Classify turns one leg into at most one journey event. rootID is the leg's
// ultimate ancestor and becomes the event's call_id.
func Classify(leg *cdr.CallEvent, rootID string) (Event, bool) {
	eventType, detail, ok := classifyStatus(leg)
	if !ok {
		return Event{}, false
	}

	return Event{
		Datetime:      leg.EnterDatetime,
		CallID:        rootID,
		LegCallID:     leg.CallID,
		QueueName:     leg.QueueName,
		CallingNumber: leg.CallingNumber,
		EventType:     eventType,
		EventDetail:   detail,
	}, true
}

func classifyStatus(leg *cdr.CallEvent) (EventType, string, bool) {
	switch leg.Status {
	case cdr.StatusIVR:
		return classifyIVRDetail(leg)
	case cdr.StatusCompleted:
		if leg.TimeInQueueSeconds != nil {
			return EventExitIVR, "Connected to agent", true
		}

		return "", "", false
	case cdr.StatusAbandoned, cdr.StatusRedirected, cdr.StatusDirectCall:
		return "", "", false
	default:
		return "", "", false
	}
}

func classifyIVRDetail(leg *cdr.CallEvent) (EventType, string, bool) {
	detail := strings.ToLower(leg.StatusDetail)

	switch {
	case strings.Contains(detail, detailHangupByTimeout):
		return EventTimeout, "IVR hangup by timeout", true
	case strings.Contains(detail, detailDigitRedirect):
		return EventKeyPress, "Pressed digit for redirect to " + forward(leg), true
	case strings.Contains(detail, detailDirectRedirect):
		return EventExitIVR, "Direct redirect to " + forward(leg), true
	default:
		return "", "", false
	}
}

func forward(leg *cdr.CallEvent) string {
	if leg.CallingForward == nil {
		return ""
	}

	return *leg.CallingForward
}
