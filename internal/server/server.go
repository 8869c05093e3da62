package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/lineage"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type CallService interface {
	Ingest(ctx context.Context, payload []byte) (*call.IngestResult, error)
	ListCallEvents(ctx context.Context) ([]cdr.CallEvent, error)
	Journeys(ctx context.Context) ([]journey.Event, error)
	CallLog(ctx context.Context, search string) ([]lineage.CallLogRow, error)
	Clear(ctx context.Context) error
}

type AgentStatusService interface {
	IngestAgentStatuses(ctx context.Context, payload []byte) (int, error)
	IngestProfileAvailabilities(ctx context.Context, payload []byte) (int, error)
	AgentStatuses(ctx context.Context) ([]agentstatus.AgentStatus, error)
	ProfileAvailabilities(ctx context.Context) ([]agentstatus.ProfileAvailability, error)
}

type Server struct {
	Calls        CallService
	AgentStatus  AgentStatusService
	MaxBodyBytes int64
}

func NewServer(calls CallService, agentStatus AgentStatusService) *Server {
	return &Server{
		Calls:        calls,
		AgentStatus:  agentStatus,
		MaxBodyBytes: 10 << 20,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestMetrics(), ErrorHandlingMiddleware())

	api := router.Group("/api")
	api.POST("/stream", s.ingestCallEvents)
	api.GET("/call-data", s.listCallEvents)
	api.GET("/call-log", s.callLog)
	api.GET("/queue-ivr-data", s.listJourneys)
	api.POST("/clear-data", s.clearData)
	api.POST("/stream/agent-status", s.ingestAgentStatuses)
	api.GET("/agent-status-data", s.listAgentStatuses)
	api.POST("/stream/profile-availability", s.ingestProfileAvailabilities)
	api.GET("/profile-availability-data", s.listProfileAvailabilities)

	return router
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	timeout := time.Duration(config.Conf.HTTPTimeout) * time.Second

	httpServer := &http.Server{
		Addr:              ":" + config.Conf.HTTPPort,
		Handler:           s.Router(),
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		logging.Logger.Info("[Run] Starting HTTP server", zap.String("port", config.Conf.HTTPPort))

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		logging.Logger.Error("[Run] Failed to shut down HTTP server", zap.String("error", err.Error()))
		return err
	}

	logging.Logger.Info("[Run] HTTP server stopped")

	return nil
}
