package cdr

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) *CallEventRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&CallEvent{}))

	return NewCallEventRepository(db)
}

func TestCallEventRepositoryAppendAndList(t *testing.T) {
	repository := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.AppendCallEvents(ctx, []CallEvent{validEvent("b"), validEvent("a")}))
	require.NoError(t, repository.AppendCallEvents(ctx, []CallEvent{validEvent("c")}))

	events, err := repository.ListCallEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, []string{"b", "a", "c"}, []string{events[0].CallID, events[1].CallID, events[2].CallID})
	require.NotNil(t, events[0].ParentCallID)
	assert.Equal(t, "c-0", *events[0].ParentCallID)
	assert.True(t, events[0].EnterDatetime.Equal(validEvent("b").EnterDatetime))
}

func TestCallEventRepositoryAppendEmptyIsNoop(t *testing.T) {
	repository := newTestRepository(t)

	require.NoError(t, repository.AppendCallEvents(context.Background(), nil))

	events, err := repository.ListCallEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCallEventRepositoryRejectsDuplicateCallID(t *testing.T) {
	repository := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.AppendCallEvents(ctx, []CallEvent{validEvent("a")}))
	require.Error(t, repository.AppendCallEvents(ctx, []CallEvent{validEvent("b"), validEvent("a")}))

	events, err := repository.ListCallEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCallEventRepositoryClear(t *testing.T) {
	repository := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repository.AppendCallEvents(ctx, []CallEvent{validEvent("a"), validEvent("b")}))
	require.NoError(t, repository.ClearCallEvents(ctx))

	events, err := repository.ListCallEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
