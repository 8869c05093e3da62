package minio

import (
	"context"
	"fmt"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const snapshotTimeLayout = "20060102T150405Z"

// Snapshot is the object body written for every derivation.
type Snapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Events      []journey.Event `json:"events"`
}

// SnapshotKey names a snapshot object; keys sort by generation time.
func SnapshotKey(generatedAt time.Time) string {
	return fmt.Sprintf("%s/%s-%s.json",
		generatedAt.UTC().Format("2006/01/02"),
		generatedAt.UTC().Format(snapshotTimeLayout),
		uuid.NewString(),
	)
}

// UploadJourneySnapshot writes the full journey collection and returns its key.
func (s *SnapshotStore) UploadJourneySnapshot(ctx context.Context, events []journey.Event) (string, error) {
	snapshot := Snapshot{
		GeneratedAt: time.Now().UTC(),
		Events:      events,
	}

	if snapshot.Events == nil {
		snapshot.Events = []journey.Event{}
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}

	key := SnapshotKey(snapshot.GeneratedAt)

	err = s.put(ctx, key, body)
	if err != nil {
		return "", err
	}

	logging.Logger.Info("[UploadJourneySnapshot] Journey snapshot uploaded",
		zap.String("url", s.ObjectURL(key)),
		zap.Int("events", len(events)),
	)

	return key, nil
}

func (s *SnapshotStore) DownloadJourneySnapshot(ctx context.Context, key string) (*Snapshot, error) {
	body, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}

	var snapshot Snapshot

	err = json.Unmarshal(body, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to decode journey snapshot %s: %w", key, err)
	}

	return &snapshot, nil
}
