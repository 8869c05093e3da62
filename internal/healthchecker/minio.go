package healthchecker

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/minio"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const probeTimeout = 30 * time.Second

// CheckMinio writes and reads back a probe object in the snapshot bucket.
func CheckMinio() error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	store, err := minio.NewSnapshotStore(ctx)
	if err != nil {
		logging.Logger.Error("[CheckMinio] Failed to create snapshot store", zap.String("error", err.Error()))
		return err
	}

	return store.Probe(ctx, uuid.NewString())
}
