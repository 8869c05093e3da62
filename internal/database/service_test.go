package database

import (
	"net/url"
	"testing"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"github.com/glebarez/sqlite"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
)

func TestGetURL(t *testing.T) {
	parsed, err := url.Parse(GetURL())
	require.NoError(t, err)

	require.Equal(t, "postgres", parsed.Scheme)
	require.Equal(t, config.Conf.PostgresUsername, parsed.User.Username())
	require.Equal(t, config.Conf.PostgresHost+":"+config.Conf.PostgresPort, parsed.Host)
	require.Equal(t, "/"+config.Conf.PostgresDatabase, parsed.Path)
	require.Equal(t, "disable", parsed.Query().Get("sslmode"))
}

func TestOpenAppliesPoolLimits(t *testing.T) {
	dbConn, err := Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"))
	require.NoError(t, err)

	defer Close(dbConn)

	sqlDB, err := dbConn.DB()
	require.NoError(t, err)
	require.Equal(t, maxOpenConns, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, Ping(dbConn))
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	settings := circuitBreakerSettings("call_events")

	require.False(t, settings.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: config.Conf.DBConsecutiveFailuresCB - 1}))
	require.True(t, settings.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: config.Conf.DBConsecutiveFailuresCB}))
	require.Equal(t, "call_events", NewCircuitBreaker("call_events").Name())
}
