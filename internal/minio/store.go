package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	prometheusCallpath "git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"github.com/avast/retry-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	contentTypeJSON = "application/json"
	probePrefix     = "healthcheck"
)

var ErrProbeMismatch = errors.New("probe object content does not match")

// SnapshotStore keeps journey snapshots in one bucket under a key prefix.
type SnapshotStore struct {
	Client         *minio.Client
	CircuitBreaker *gobreaker.CircuitBreaker[any]
	Endpoint       string
	Bucket         string
	Prefix         string
	Timeout        time.Duration
}

// NewSnapshotStore connects to the configured endpoint and creates the bucket
// when it does not exist yet.
func NewSnapshotStore(ctx context.Context) (*SnapshotStore, error) {
	client, err := minio.New(config.Conf.MinioEndpointURL, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Conf.MinioAccessKey, config.Conf.MinioSecretKey, ""),
		Secure: config.Conf.MinioSecure,
	})
	if err != nil {
		logging.Logger.Error("[NewSnapshotStore] Failed to initialize MinIO client",
			zap.String("endpoint", config.Conf.MinioEndpointURL),
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	store := &SnapshotStore{
		Client:         client,
		CircuitBreaker: newCircuitBreaker(),
		Endpoint:       config.Conf.MinioEndpointURL,
		Bucket:         config.Conf.MinioBucketName,
		Prefix:         config.Conf.MinioPathPrefix,
		Timeout:        time.Duration(config.Conf.MinioTimeout) * time.Second,
	}

	err = store.ensureBucket(ctx)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("[NewSnapshotStore] Connected to MinIO",
		zap.String("endpoint", store.Endpoint),
		zap.String("bucket", store.Bucket),
	)

	return store, nil
}

func newCircuitBreaker() *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:     circuitbreak.MinioService,
		Interval: time.Duration(config.Conf.MinioIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.MinioConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.MinioService)
			}
		},
	})
}

// run executes fn behind the breaker with a per-operation timeout and
// exponential retries, observing the operation duration.
func (s *SnapshotStore) run(ctx context.Context, operation, objectKey string, fn func(context.Context) error) error {
	_, err := s.CircuitBreaker.Execute(func() (any, error) {
		timer := prometheus.NewTimer(prometheusCallpath.MinioOperationDuration.WithLabelValues(operation))
		defer timer.ObserveDuration()

		opCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()

		return nil, retry.Do(
			func() error {
				err := fn(opCtx)
				if err != nil {
					logging.Logger.Warn("MinIO attempt failed",
						zap.String("operation", operation),
						zap.String("object_key", objectKey),
						zap.String("error", err.Error()),
					)
				}

				return err
			},
			retry.Context(opCtx),
			retry.Attempts(config.Conf.MinioMaxRetryAttempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(time.Duration(config.Conf.MinioRetryBackoffMinSeconds)*time.Second),
			retry.MaxDelay(time.Duration(config.Conf.MinioRetryBackoffMaxSeconds)*time.Second),
			retry.LastErrorOnly(true),
		)
	})
	if err != nil {
		logging.Logger.Error("MinIO operation failed",
			zap.String("operation", operation),
			zap.String("object_key", objectKey),
			zap.String("error", err.Error()),
		)
	}

	return err
}

func (s *SnapshotStore) ensureBucket(ctx context.Context) error {
	return s.run(ctx, "ensure_bucket", "", func(ctx context.Context) error {
		exists, err := s.Client.BucketExists(ctx, s.Bucket)
		if err != nil {
			return err
		}

		if exists {
			return nil
		}

		return s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{})
	})
}

func (s *SnapshotStore) put(ctx context.Context, objectKey string, body []byte) error {
	return s.run(ctx, "upload", objectKey, func(ctx context.Context) error {
		_, err := s.Client.PutObject(ctx, s.Bucket, s.objectKey(objectKey),
			bytes.NewReader(body), int64(len(body)),
			minio.PutObjectOptions{ContentType: contentTypeJSON},
		)

		return err
	})
}

func (s *SnapshotStore) get(ctx context.Context, objectKey string) ([]byte, error) {
	var body []byte

	err := s.run(ctx, "download", objectKey, func(ctx context.Context) error {
		object, err := s.Client.GetObject(ctx, s.Bucket, s.objectKey(objectKey), minio.GetObjectOptions{})
		if err != nil {
			return err
		}

		defer func() {
			cerr := object.Close()
			if cerr != nil {
				logging.Logger.Error("Failed to close MinIO object reader",
					zap.String("object_key", objectKey),
					zap.String("error", cerr.Error()),
				)
			}
		}()

		body, err = io.ReadAll(object)

		return err
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (s *SnapshotStore) remove(ctx context.Context, objectKey string) error {
	return s.run(ctx, "remove", objectKey, func(ctx context.Context) error {
		return s.Client.RemoveObject(ctx, s.Bucket, s.objectKey(objectKey), minio.RemoveObjectOptions{})
	})
}

// Probe writes, reads back and removes a small object.
func (s *SnapshotStore) Probe(ctx context.Context, id string) error {
	key := path.Join(probePrefix, id+".json")
	body := []byte(`{"probe":"` + id + `"}`)

	err := s.put(ctx, key, body)
	if err != nil {
		return err
	}

	got, err := s.get(ctx, key)
	if err != nil {
		return err
	}

	if !bytes.Equal(got, body) {
		return fmt.Errorf("%w: %s", ErrProbeMismatch, key)
	}

	return s.remove(ctx, key)
}

// ObjectURL is the location of objectKey as seen by readers of the bucket.
func (s *SnapshotStore) ObjectURL(objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", s.Endpoint, s.Bucket, s.objectKey(objectKey))
}

func (s *SnapshotStore) objectKey(objectKey string) string {
	return path.Join(s.Prefix, objectKey)
}
