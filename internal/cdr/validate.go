package cdr

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	ErrEmptyBatch      = errors.New("call event batch is empty")
	ErrDuplicateCallID = errors.New("duplicate call_id")
)

// ValidationError reports the first invalid record of a batch.
type ValidationError struct {
	Index  int
	CallID string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid call event at index %d (call_id=%q): %s", e.Index, e.CallID, e.Err.Error())
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("cdr_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})

	return v
}

// DecodeBatch accepts either a single JSON object or a JSON array of call events.
func DecodeBatch(payload []byte) ([]CallEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBatch
	}

	if trimmed[0] == '[' {
		var events []CallEvent

		err := json.Unmarshal(trimmed, &events)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal call event batch: %w", err)
		}

		return events, nil
	}

	var event CallEvent

	err := json.Unmarshal(trimmed, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal call event: %w", err)
	}

	return []CallEvent{event}, nil
}

// ValidateBatch checks every record of batch and rejects call ids that repeat
// inside the batch or already exist in knownIDs.
func ValidateBatch(batch []CallEvent, knownIDs map[string]struct{}) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}

	seen := make(map[string]struct{}, len(batch))

	for idx := range batch {
		event := &batch[idx]

		err := validate.Struct(event)
		if err != nil {
			return &ValidationError{Index: idx, CallID: event.CallID, Err: err}
		}

		_, inBatch := seen[event.CallID]
		_, stored := knownIDs[event.CallID]

		if inBatch || stored {
			return &ValidationError{Index: idx, CallID: event.CallID, Err: ErrDuplicateCallID}
		}

		seen[event.CallID] = struct{}{}
	}

	return nil
}
