package agentstatus

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var ErrEmptyPayload = errors.New("payload is empty")

var validate = validator.New()

type Store interface {
	AppendAgentStatuses(ctx context.Context, rows []AgentStatus) error
	ListAgentStatuses(ctx context.Context) ([]AgentStatus, error)
	AppendProfileAvailabilities(ctx context.Context, rows []ProfileAvailability) error
	ListProfileAvailabilities(ctx context.Context) ([]ProfileAvailability, error)
	Clear(ctx context.Context) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// IngestAgentStatuses appends one row or an array of rows and returns how many
// were stored.
func (s *Service) IngestAgentStatuses(ctx context.Context, payload []byte) (int, error) {
	rows, err := decode[AgentStatus](payload)
	if err != nil {
		return 0, err
	}

	err = s.store.AppendAgentStatuses(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to store agent statuses: %w", err)
	}

	return len(rows), nil
}

func (s *Service) IngestProfileAvailabilities(ctx context.Context, payload []byte) (int, error) {
	rows, err := decode[ProfileAvailability](payload)
	if err != nil {
		return 0, err
	}

	err = s.store.AppendProfileAvailabilities(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to store profile availabilities: %w", err)
	}

	return len(rows), nil
}

func (s *Service) AgentStatuses(ctx context.Context) ([]AgentStatus, error) {
	return s.store.ListAgentStatuses(ctx)
}

func (s *Service) ProfileAvailabilities(ctx context.Context) ([]ProfileAvailability, error) {
	return s.store.ListProfileAvailabilities(ctx)
}

func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// ValidationError reports the first invalid row of a payload.
type ValidationError struct {
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid row at index %d: %s", e.Index, e.Err.Error())
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func decode[T any](payload []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	var rows []T

	if trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &rows)
		if err != nil {
			return nil, &ValidationError{Index: -1, Err: err}
		}
	} else {
		var row T

		err := json.Unmarshal(trimmed, &row)
		if err != nil {
			return nil, &ValidationError{Index: -1, Err: err}
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyPayload
	}

	for idx := range rows {
		err := validate.Struct(&rows[idx])
		if err != nil {
			return nil, &ValidationError{Index: idx, Err: err}
		}
	}

	return rows, nil
}
