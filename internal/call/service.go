package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/lineage"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	prometheusCallpath "git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidPayload = errors.New("invalid call event payload")

type CallEventStore interface {
	ListCallEvents(ctx context.Context) ([]cdr.CallEvent, error)
	AppendCallEvents(ctx context.Context, events []cdr.CallEvent) error
	ClearCallEvents(ctx context.Context) error
}

type JourneyStore interface {
	ReplaceEvents(ctx context.Context, events []journey.Event) error
	ClearEvents(ctx context.Context) error
}

// JourneyPublisher announces the journeys of calls touched by an ingestion.
type JourneyPublisher interface {
	PublishJourneys(ctx context.Context, events []journey.Event) error
}

// SnapshotStore keeps point-in-time copies of the full journey collection.
type SnapshotStore interface {
	UploadJourneySnapshot(ctx context.Context, events []journey.Event) (string, error)
}

type Clearer interface {
	Clear(ctx context.Context) error
}

type IngestResult struct {
	Accepted      int      `json:"accepted"`
	Flattened     int      `json:"flattened"`
	JourneyEvents int      `json:"journey_events"`
	AffectedCalls []string `json:"affected_calls"`
	SnapshotKey   string   `json:"snapshot_key,omitempty"`
}

// CallService owns the call event collection. Every write goes through a single
// lock so each derivation sees the complete, current set.
type CallService struct {
	mu sync.Mutex

	CallEvents  CallEventStore
	Journeys    JourneyStore
	Publisher   JourneyPublisher
	Snapshots   SnapshotStore
	Collections []Clearer
}

// NewService wires the service. publisher and snapshots may be nil; collections
// are additional stores emptied by Clear.
func NewService(
	callEvents CallEventStore,
	journeys JourneyStore,
	publisher JourneyPublisher,
	snapshots SnapshotStore,
	collections ...Clearer,
) *CallService {
	return &CallService{
		CallEvents:  callEvents,
		Journeys:    journeys,
		Publisher:   publisher,
		Snapshots:   snapshots,
		Collections: collections,
	}
}

// ProcessCallMessage ingests a Kafka or dead letter payload.
func (s *CallService) ProcessCallMessage(ctx context.Context, msg []byte) (*IngestResult, error) {
	return s.Ingest(ctx, msg)
}

// Ingest validates one record or an array of records, stores them with
// flattened parents and re-derives the journey collection from the full set.
// Publishing and snapshotting happen after the lock is released and their
// failures are logged only, since the records are already stored.
func (s *CallService) Ingest(ctx context.Context, payload []byte) (*IngestResult, error) {
	batch, err := cdr.DecodeBatch(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	result, affected, err := s.store(ctx, batch)
	if err != nil {
		return nil, err
	}

	result.SnapshotKey = s.propagate(ctx, affected.events, affected.all)

	logging.Logger.Info("[Ingest] Call events ingested",
		zap.Int("accepted", result.Accepted),
		zap.Int("flattened", result.Flattened),
		zap.Int("journey_events", result.JourneyEvents),
		zap.Strings("affected_calls", result.AffectedCalls),
	)

	return result, nil
}

type derivedJourneys struct {
	all    []journey.Event
	events []journey.Event
}

func (s *CallService) store(ctx context.Context, batch []cdr.CallEvent) (*IngestResult, derivedJourneys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.CallEvents.ListCallEvents(ctx)
	if err != nil {
		return nil, derivedJourneys{}, fmt.Errorf("failed to load call events: %w", err)
	}

	knownIDs := make(map[string]struct{}, len(stored))
	for idx := range stored {
		knownIDs[stored[idx].CallID] = struct{}{}
	}

	err = cdr.ValidateBatch(batch, knownIDs)
	if err != nil {
		return nil, derivedJourneys{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	normalized := lineage.Normalize(stored, batch)

	err = s.CallEvents.AppendCallEvents(ctx, batch)
	if err != nil {
		return nil, derivedJourneys{}, fmt.Errorf("failed to store call events: %w", err)
	}

	prometheusCallpath.IngestBatchSize.Observe(float64(len(batch)))

	resolver, events := derive(append(stored, batch...))

	// Call events are already committed; journeys are re-derived on read.
	err = s.Journeys.ReplaceEvents(ctx, events)
	if err != nil {
		logging.Logger.Warn("[store] Failed to store journey events",
			zap.Int("journey_events", len(events)),
			zap.String("error", err.Error()),
		)
	}

	affectedRoots := make(map[string]struct{}, len(batch))
	affectedCalls := make([]string, 0, len(batch))

	for idx := range batch {
		root := resolver.UltimateAncestor(batch[idx].CallID)
		if _, ok := affectedRoots[root]; ok {
			continue
		}

		affectedRoots[root] = struct{}{}
		affectedCalls = append(affectedCalls, root)
	}

	var affectedEvents []journey.Event

	for _, event := range events {
		if _, ok := affectedRoots[event.CallID]; ok {
			affectedEvents = append(affectedEvents, event)
		}
	}

	return &IngestResult{
		Accepted:      len(batch),
		Flattened:     normalized.Flattened,
		JourneyEvents: len(events),
		AffectedCalls: affectedCalls,
	}, derivedJourneys{all: events, events: affectedEvents}, nil
}

func (s *CallService) propagate(ctx context.Context, affected, all []journey.Event) string {
	var (
		snapshotKey string
		group       errgroup.Group
	)

	if s.Publisher != nil && len(affected) > 0 {
		group.Go(func() error {
			err := s.Publisher.PublishJourneys(ctx, affected)
			if err != nil {
				return fmt.Errorf("failed to publish journeys: %w", err)
			}

			return nil
		})
	}

	if s.Snapshots != nil {
		group.Go(func() error {
			key, err := s.Snapshots.UploadJourneySnapshot(ctx, all)
			if err != nil {
				return fmt.Errorf("failed to upload journey snapshot: %w", err)
			}

			snapshotKey = key

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		logging.Logger.Warn("[Ingest] Journey propagation incomplete",
			zap.String("error", err.Error()),
		)
	}

	return snapshotKey
}

// derive runs the lineage resolver and journey builder over the complete set.
func derive(events []cdr.CallEvent) (*lineage.Resolver, []journey.Event) {
	timer := prometheus.NewTimer(prometheusCallpath.DerivationDuration)
	defer timer.ObserveDuration()

	resolver := lineage.NewResolver(events)
	journeys := journey.Build(resolver)

	recordStats(resolver.Stats())
	prometheusCallpath.JourneyEvents.Set(float64(len(journeys)))

	return resolver, journeys
}

func recordStats(stats lineage.Stats) {
	prometheusCallpath.LineageAnomalies.WithLabelValues(prometheusCallpath.AnomalyOrphan).Set(float64(stats.Orphans))
	prometheusCallpath.LineageAnomalies.WithLabelValues(prometheusCallpath.AnomalyCycle).Set(float64(stats.Cycles))
	prometheusCallpath.LineageAnomalies.WithLabelValues(prometheusCallpath.AnomalySelfReference).
		Set(float64(stats.SelfReferences))

	if stats.Cycles > 0 || stats.SelfReferences > 0 {
		logging.Logger.Warn("[derive] Broken parent references in call lineage",
			zap.Int("cycles", stats.Cycles),
			zap.Int("self_references", stats.SelfReferences),
		)
	}

	if stats.Orphans > 0 {
		logging.Logger.Debug("[derive] Calls with unknown parent treated as roots",
			zap.Int("orphans", stats.Orphans),
		)
	}
}

func (s *CallService) ListCallEvents(ctx context.Context) ([]cdr.CallEvent, error) {
	return s.CallEvents.ListCallEvents(ctx)
}

// Journeys derives the journey collection from the persisted call events.
func (s *CallService) Journeys(ctx context.Context) ([]journey.Event, error) {
	events, err := s.CallEvents.ListCallEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load call events: %w", err)
	}

	_, journeys := derive(events)

	return journeys, nil
}

// CallLog returns grouped call legs, newest logical call first.
func (s *CallService) CallLog(ctx context.Context, search string) ([]lineage.CallLogRow, error) {
	events, err := s.CallEvents.ListCallEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load call events: %w", err)
	}

	groups, _ := lineage.GroupCalls(events)

	return lineage.CallLog(groups, search), nil
}

// Clear empties the call events, the derived journeys and every extra collection.
func (s *CallService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	err := s.CallEvents.ClearCallEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear call events: %w", err)
	}

	err = s.Journeys.ClearEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear journey events: %w", err)
	}

	for _, collection := range s.Collections {
		err = collection.Clear(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	prometheusCallpath.JourneyEvents.Set(0)

	logging.Logger.Info("[Clear] All collections cleared", zap.Duration("duration", time.Since(start)))

	return nil
}
