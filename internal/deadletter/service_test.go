package deadletter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"github.com/glebarez/sqlite"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeProcessor struct {
	err   error
	calls atomic.Int32
}

func (f *fakeProcessor) ProcessCallMessage(context.Context, []byte) (*call.IngestResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}

	return &call.IngestResult{Accepted: 1}, nil
}

var clock = time.Date(2025, 7, 10, 16, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, processor MessageProcessor) *DeadLetterService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&CDRDeadLetter{}))

	service := NewService(db, processor)
	service.RetryDelay = time.Minute
	service.Now = func() time.Time { return clock }

	return service
}

func load(t *testing.T, service *DeadLetterService, messageID string) CDRDeadLetter {
	t.Helper()

	var letter CDRDeadLetter
	require.NoError(t, service.DLRepository.DBConn.First(&letter, "message_id = ?", messageID).Error)

	return letter
}

func claimAll(t *testing.T, service *DeadLetterService, at time.Time) []CDRDeadLetter {
	t.Helper()

	letters, err := service.DLRepository.ClaimDue(context.Background(), at, 3, 10)
	require.NoError(t, err)

	return letters
}

var (
	source  = Source{Topic: "pbx-cdr-events", Partition: 2, Offset: 17}
	payload = []byte(`{"call_id": "A"}`)
)

func TestSourceIDUsesLogPosition(t *testing.T) {
	assert.Equal(t, "pbx-cdr-events-2-17", source.ID())
}

func TestNextRetryAtDoublesPerAttempt(t *testing.T) {
	assert.Equal(t, clock.Add(time.Minute), nextRetryAt(clock, time.Minute, 0))
	assert.Equal(t, clock.Add(4*time.Minute), nextRetryAt(clock, time.Minute, 2))
	assert.Equal(t, clock.Add(1024*time.Minute), nextRetryAt(clock, time.Minute, 50))
}

func TestMarkMessageStoresPendingAndUpserts(t *testing.T) {
	service := newTestService(t, &fakeProcessor{})
	ctx := context.Background()

	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("db down")))
	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("db still down")))

	letter := load(t, service, source.ID())
	assert.Equal(t, StatusPending, letter.Status)
	assert.Equal(t, "db still down", letter.LastError)
	assert.Equal(t, int64(17), letter.Offset)
	assert.Equal(t, payload, letter.Payload)

	var count int64
	require.NoError(t, service.DLRepository.DBConn.Model(&CDRDeadLetter{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkMessageKeepsUndecodablePayload(t *testing.T) {
	service := newTestService(t, &fakeProcessor{})

	cause := fmt.Errorf("%w: unexpected end of JSON input", call.ErrInvalidPayload)
	require.NoError(t, service.MarkMessage(context.Background(), source, []byte(`{"call_id"`), cause))

	letter := load(t, service, source.ID())
	assert.Equal(t, StatusFailed, letter.Status)
	assert.Equal(t, `{"call_id"`, string(letter.Payload))
	assert.Empty(t, claimAll(t, service, clock.Add(time.Hour)))
}

func TestClaimDueHonoursScheduleAndAttempts(t *testing.T) {
	service := newTestService(t, &fakeProcessor{})
	ctx := context.Background()

	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("boom")))

	assert.Empty(t, claimAll(t, service, clock))

	letters, err := service.DLRepository.ClaimDue(ctx, clock.Add(time.Hour), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)

	letters = claimAll(t, service, clock.Add(time.Hour))
	require.Len(t, letters, 1)
	assert.Equal(t, StatusInProgress, letters[0].Status)
	assert.Equal(t, StatusInProgress, load(t, service, source.ID()).Status)

	assert.Empty(t, claimAll(t, service, clock.Add(time.Hour)))

	released, err := service.DLRepository.ReleaseClaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	assert.Len(t, claimAll(t, service, clock.Add(time.Hour)), 1)
}

func TestProcessDeadLetterDeletesOnSuccess(t *testing.T) {
	processor := &fakeProcessor{}
	service := newTestService(t, processor)
	ctx := context.Background()

	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("boom")))

	letters := claimAll(t, service, clock.Add(time.Hour))
	require.Len(t, letters, 1)

	service.ProcessDeadLetter(ctx, &letters[0])

	assert.Equal(t, int32(1), processor.calls.Load())

	var count int64
	require.NoError(t, service.DLRepository.DBConn.Model(&CDRDeadLetter{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessDeadLetterReschedulesOnFailure(t *testing.T) {
	service := newTestService(t, &fakeProcessor{err: errors.New("still down")})
	ctx := context.Background()

	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("boom")))

	letters := claimAll(t, service, clock.Add(time.Hour))
	require.Len(t, letters, 1)

	service.ProcessDeadLetter(ctx, &letters[0])

	letter := load(t, service, source.ID())
	assert.Equal(t, 1, letter.Attempts)
	assert.Equal(t, StatusPending, letter.Status)
	assert.Equal(t, "still down", letter.LastError)
	assert.True(t, letter.NextRetryAt.Equal(clock.Add(2*time.Minute)))
}

func TestProcessDeadLetterFailsInvalidPayload(t *testing.T) {
	processor := &fakeProcessor{err: fmt.Errorf("%w: duplicate call_id", call.ErrInvalidPayload)}
	service := newTestService(t, processor)
	ctx := context.Background()

	require.NoError(t, service.MarkMessage(ctx, source, payload, errors.New("boom")))

	letters := claimAll(t, service, clock.Add(time.Hour))
	require.Len(t, letters, 1)

	service.ProcessDeadLetter(ctx, &letters[0])

	assert.Equal(t, StatusFailed, load(t, service, source.ID()).Status)
	assert.Empty(t, claimAll(t, service, clock.Add(24*time.Hour)))
}

func TestWorkerProcessDueHandlesWholeBatch(t *testing.T) {
	processor := &fakeProcessor{}
	service := newTestService(t, processor)
	ctx := context.Background()

	for offset := range int64(3) {
		failed := Source{Topic: "pbx-cdr-events", Offset: offset}
		require.NoError(t, service.MarkMessage(ctx, failed, payload, errors.New("boom")))
	}

	pool, err := ants.NewPool(2)
	require.NoError(t, err)

	defer pool.Release()

	service.Now = func() time.Time { return clock.Add(time.Hour) }

	worker := &DeadLetterWorker{WorkerPool: pool, DLService: service, MaxAttempts: 3, BatchLimit: 10}
	worker.processDue(ctx)

	assert.Equal(t, int32(3), processor.calls.Load())

	var count int64
	require.NoError(t, service.DLRepository.DBConn.Model(&CDRDeadLetter{}).Count(&count).Error)
	assert.Zero(t, count)
}
