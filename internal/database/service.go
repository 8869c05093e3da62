package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns       = 20
	maxIdleConns       = 5
	connMaxLifetime    = 30 * time.Minute
	slowQueryThreshold = 500 * time.Millisecond
	pingTimeout        = 10 * time.Second
)

// NewDatabase connects to the configured Postgres database.
func NewDatabase() (*gorm.DB, error) {
	dbConn, err := Open(postgres.Open(GetURL()))
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("[NewDatabase] Connected to Postgres",
		zap.String("host", config.Conf.PostgresHost),
		zap.String("database", config.Conf.PostgresDatabase),
	)

	return dbConn, nil
}

// Open opens dialector with the shared pool limits and query logger, then pings it.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	dbConn, err := gorm.Open(dialector, &gorm.Config{
		Logger: newQueryLogger(),
	})
	if err != nil {
		logging.Logger.Error("[Open] Failed to open database",
			zap.String("dialect", dialector.Name()),
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	sqlDB, err := dbConn.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	err = Ping(dbConn)
	if err != nil {
		logging.Logger.Error("[Open] Failed to ping database",
			zap.String("dialect", dialector.Name()),
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	return dbConn, nil
}

// newQueryLogger routes slow queries and driver errors through the zap logger.
func newQueryLogger() gormLogger.Interface {
	return gormLogger.New(
		zap.NewStdLog(logging.Logger.Named("gorm")),
		gormLogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

func Ping(dbConn *gorm.DB) error {
	sqlDB, err := dbConn.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

func Close(dbConn *gorm.DB) {
	sqlDB, err := dbConn.DB()
	if err == nil {
		err = sqlDB.Close()
	}

	if err != nil {
		logging.Logger.Error("[Close] Failed to close database", zap.String("error", err.Error()))
	}
}

// GetURL is the postgres:// URL used by both gorm and golang-migrate.
func GetURL() string {
	dbURL := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.Conf.PostgresUsername, config.Conf.PostgresPassword),
		Host:     fmt.Sprintf("%s:%s", config.Conf.PostgresHost, config.Conf.PostgresPort),
		Path:     config.Conf.PostgresDatabase,
		RawQuery: url.Values{"sslmode": []string{"disable"}}.Encode(),
	}

	return dbURL.String()
}

// NewCircuitBreaker guards one repository; name identifies it in logs.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](circuitBreakerSettings(name))
}

func circuitBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:     name,
		Interval: time.Duration(config.Conf.DBIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			willTrip := counts.ConsecutiveFailures >= config.Conf.DBConsecutiveFailuresCB

			if willTrip {
				logging.Logger.Error("Database circuit breaker about to trip",
					zap.String("repository", name),
					zap.Uint32("total_failures", counts.TotalFailures),
					zap.Uint32("consecutive_failures", counts.ConsecutiveFailures),
				)
			}

			return willTrip
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn("Database circuit breaker state changed",
				zap.String("repository", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.DBService)
			}
		},
	}
}
