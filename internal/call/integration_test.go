//go:build integration

package call

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const postgresPassword = "callpath-secret"

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	pool.MaxWait = 90 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=callpath",
			"POSTGRES_PASSWORD=" + postgresPassword,
			"POSTGRES_DB=callpath",
		},
	}, func(hostConfig *docker.HostConfig) {
		hostConfig.AutoRemove = true
		hostConfig.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	config.Conf.PostgresHost = "localhost"
	config.Conf.PostgresPort = resource.GetPort("5432/tcp")
	config.Conf.PostgresUsername = "callpath"
	config.Conf.PostgresPassword = postgresPassword
	config.Conf.PostgresDatabase = "callpath"

	var dbConn *gorm.DB

	err = pool.Retry(func() error {
		var connErr error

		dbConn, connErr = database.NewDatabase()

		return connErr
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		database.Close(dbConn)
	})

	wd, err := os.Getwd()
	require.NoError(t, err)

	migrator, err := migrate.New(
		"file://"+filepath.ToSlash(filepath.Join(wd, "..", "..", "migrations")),
		database.GetURL(),
	)
	require.NoError(t, err)

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}

	return dbConn
}

func TestIngestAgainstPostgres(t *testing.T) {
	dbConn := startPostgres(t)
	ctx := context.Background()

	journeys := journey.NewEventRepository(dbConn)
	agentStatus := agentstatus.NewService(agentstatus.NewRepository(dbConn))
	service := NewService(cdr.NewCallEventRepository(dbConn), journeys, nil, nil, agentStatus)

	_, err := service.Ingest(ctx, []byte("["+ivrRoot+","+transferLeg+"]"))
	require.NoError(t, err)

	result, err := service.Ingest(ctx, []byte(agentLeg))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Flattened)

	stored, err := service.ListCallEvents(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.NotNil(t, stored[2].ParentCallID)
	assert.Equal(t, "A", *stored[2].ParentCallID)

	persisted, err := journeys.ListEvents(ctx)
	require.NoError(t, err)

	derived, err := service.Journeys(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, len(derived))

	for idx := range derived {
		assert.Equal(t, derived[idx].IvrPath, persisted[idx].IvrPath)
		assert.Equal(t, derived[idx].LegCallID, persisted[idx].LegCallID)
		assert.True(t, derived[idx].Datetime.Equal(persisted[idx].Datetime))
	}

	_, err = agentStatus.IngestAgentStatuses(ctx, []byte(`{"hour": 9, "date": "2025-07-10", "user_id": "u-1"}`))
	require.NoError(t, err)

	require.NoError(t, service.Clear(ctx))

	stored, err = service.ListCallEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	statuses, err := agentStatus.AgentStatuses(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
