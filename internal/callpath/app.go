package callpath

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/deadletter"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/healthchecker"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/kafka"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/minio"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/server"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type App struct {
	DBConn               *gorm.DB
	SnapshotStore        *minio.SnapshotStore
	KafkaConsumer        *kafka.Consumer
	KafkaProducer        *kafka.Producer
	WorkerPool           *ants.Pool
	CallService          *call.CallService
	AgentStatusService   *agentstatus.Service
	DeadLetterService    *deadletter.DeadLetterService
	DeadLetterWorker     *deadletter.DeadLetterWorker
	HTTPServer           *server.Server
	HealthCheckerService *healthchecker.Healthchecker
}

func NewApp(ctxCancelFun context.CancelFunc) (*App, error) {
	logging.Logger.Info("[NewApp] Initializing callpath application...")

	healthcheckerService := healthchecker.NewService(ctxCancelFun)

	dbConn, err := database.NewDatabase()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize database", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Database connection established")

	var (
		snapshotStore *minio.SnapshotStore
		snapshots     call.SnapshotStore
	)

	if config.Conf.SnapshotEnabled {
		snapshotStore, err = newSnapshotStore()
		if err != nil {
			logging.Logger.Error("[NewApp] Failed to initialize snapshot store", zap.Error(err))
			return nil, err
		}

		snapshots = snapshotStore
	} else {
		logging.Logger.Info("[NewApp] Journey snapshots disabled")
	}

	kafkaConsumer, err := kafka.NewConsumer()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create Kafka consumer", zap.Error(err))
		return nil, err
	}

	kafkaProducer, workerPool, err := initializeKafkaProducerAndPool()
	if err != nil {
		return nil, err
	}

	publisher := kafka.NewJourneyPublisher(
		kafkaProducer,
		config.Conf.KafkaJourneyTopic,
		config.Conf.KafkaRetryMaxAttempts,
	)

	agentStatusService := agentstatus.NewService(agentstatus.NewRepository(dbConn))

	callService := call.NewService(
		cdr.NewCallEventRepository(dbConn),
		journey.NewEventRepository(dbConn),
		publisher,
		snapshots,
		agentStatusService,
	)

	logging.Logger.Info("[NewApp] Call service created")

	deadletterService := deadletter.NewService(dbConn, callService)

	deadletterWorker, err := deadletter.NewWorker(deadletterService)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create dead letter worker", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Dead letter worker created")

	logging.Logger.Info("[NewApp] Initializing circuit breakers...")
	circuitbreak.Init()

	return &App{
		DBConn:               dbConn,
		SnapshotStore:        snapshotStore,
		KafkaConsumer:        kafkaConsumer,
		KafkaProducer:        kafkaProducer,
		WorkerPool:           workerPool,
		CallService:          callService,
		AgentStatusService:   agentStatusService,
		DeadLetterService:    deadletterService,
		DeadLetterWorker:     deadletterWorker,
		HTTPServer:           server.NewServer(callService, agentStatusService),
		HealthCheckerService: healthcheckerService,
	}, nil
}

func newSnapshotStore() (*minio.SnapshotStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.Conf.MinioTimeout)*time.Second)
	defer cancel()

	return minio.NewSnapshotStore(ctx)
}

func initializeKafkaProducerAndPool() (*kafka.Producer, *ants.Pool, error) {
	kafkaProducer, err := kafka.NewProducer()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create Kafka producer", zap.Error(err))
		return nil, nil, err
	}

	logging.Logger.Info("[NewApp] Creating worker pool", zap.Int("pool_size", config.Conf.PoolSize))

	workerPool, err := ants.NewPool(config.Conf.PoolSize, ants.WithPreAlloc(true))
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create worker pool", zap.Error(err))
		return nil, nil, err
	}

	return kafkaProducer, workerPool, nil
}

// Run blocks until ctx is canceled, either by shutdown or by a tripped breaker.
func (app *App) Run(ctx context.Context) error {
	logging.Logger.Info("[Run] Starting app goroutines...")

	go app.HealthCheckerService.Monitor(ctx)

	go app.DeadLetterWorker.Run(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return app.HTTPServer.Run(groupCtx)
	})

	group.Go(func() error {
		logging.Logger.Info("[Run] Starting Kafka consumer",
			zap.String("topic", config.Conf.KafkaCDRTopic),
			zap.Int("worker_pool_size", config.Conf.PoolSize),
		)

		return app.KafkaConsumer.Consume(groupCtx, config.Conf.KafkaCDRTopic, app.MessageHandler)
	})

	err := group.Wait()

	app.shutdown()

	return err
}

func (app *App) shutdown() {
	logging.Logger.Info("[Run] Closing Kafka consumer...")

	err := app.KafkaConsumer.Close()
	if err != nil {
		logging.Logger.Error("[Run] Failed to close consumer", zap.String("error", err.Error()))
	}

	logging.Logger.Info("[Run] Releasing worker pool...",
		zap.Int("running_workers", app.WorkerPool.Running()),
		zap.Int("free_workers", app.WorkerPool.Free()),
	)
	app.WorkerPool.Release()

	err = app.KafkaProducer.Close()
	if err != nil {
		logging.Logger.Error("[Run] Failed to close producer", zap.String("error", err.Error()))
	}

	database.Close(app.DBConn)

	logging.Logger.Info("[Run] ===== App shutdown complete =====")
}
