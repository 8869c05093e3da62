package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	PostgresHost            string `mapstructure:"postgres_host"              validate:"required"`
	PostgresUsername        string `mapstructure:"postgres_username"          validate:"required"`
	PostgresPassword        string `mapstructure:"postgres_password"`
	PostgresPort            string `mapstructure:"postgres_port"              validate:"required,numeric"`
	PostgresDatabase        string `mapstructure:"postgres_database"          validate:"required"`
	DBIntervalCB            uint32 `mapstructure:"db_interval_cb"`
	DBConsecutiveFailuresCB uint32 `mapstructure:"db_consecutive_failures_cb" validate:"gt=0"`

	KafkaBootstrapServer       string `mapstructure:"kafka_bootstrap_server"        validate:"required"`
	KafkaSASLEnabled           bool   `mapstructure:"kafka_sasl_enabled"`
	KafkaSASLMechanism         string `mapstructure:"kafka_sasl_mechanism"          validate:"oneof=SCRAM-SHA-256 SCRAM-SHA-512"`
	KafkaUsername              string `mapstructure:"kafka_username"                validate:"required_if=KafkaSASLEnabled true"`
	KafkaPassword              string `mapstructure:"kafka_password"                validate:"required_if=KafkaSASLEnabled true"`
	KafkaCDRTopic              string `mapstructure:"kafka_cdr_topic"               validate:"required"`
	KafkaCDRGroupID            string `mapstructure:"kafka_cdr_group_id"            validate:"required"`
	KafkaJourneyTopic          string `mapstructure:"kafka_journey_topic"           validate:"required"`
	KafkaIntervalCB            uint32 `mapstructure:"kafka_interval_cb"`
	KafkaConsecutiveFailuresCB uint32 `mapstructure:"kafka_consecutive_failures_cb" validate:"gt=0"`
	KafkaRetryMaxAttempts      uint   `mapstructure:"kafka_retry_max_attempts"`

	LogLevel    string `mapstructure:"log_level"`
	LogFilePath string `mapstructure:"log_file_path"`

	SnapshotEnabled             bool   `mapstructure:"snapshot_enabled"`
	MinioEndpointURL            string `mapstructure:"minio_endpoint_url"              validate:"required_if=SnapshotEnabled true"`
	MinioAccessKey              string `mapstructure:"minio_access_key"                validate:"required_if=SnapshotEnabled true"`
	MinioSecretKey              string `mapstructure:"minio_secret_key"                validate:"required_if=SnapshotEnabled true"`
	MinioBucketName             string `mapstructure:"minio_bucket_name"               validate:"required_if=SnapshotEnabled true"`
	MinioSecure                 bool   `mapstructure:"minio_secure"`
	MinioMaxRetryAttempts       uint   `mapstructure:"minio_max_retry_attempts"`
	MinioRetryBackoffMinSeconds int    `mapstructure:"minio_retry_backoff_min_seconds"`
	MinioRetryBackoffMaxSeconds int    `mapstructure:"minio_retry_backoff_max_seconds"`
	MinioPathPrefix             string `mapstructure:"minio_path_prefix"`
	MinioTimeout                int    `mapstructure:"minio_timeout"`
	MinioIntervalCB             uint32 `mapstructure:"minio_interval_cb"`
	MinioConsecutiveFailuresCB  uint32 `mapstructure:"minio_consecutive_failures_cb"   validate:"gt=0"`

	PoolSize           int `mapstructure:"pool_size"             validate:"gt=0"`
	DeadLetterPoolSize int `mapstructure:"dead_letter_pool_size" validate:"gt=0"`

	DeadLetterCallMaxRetries int `mapstructure:"deadletter_call_max_retries"`
	DeadLetterCallLimit      int `mapstructure:"deadletter_call_limit"`
	DeadLetterCallInterval   int `mapstructure:"deadletter_call_interval"    validate:"gt=0"`
	DeadLetterCallRetryDelay int `mapstructure:"deadletter_call_retry_delay"`

	HealthCheckerMonitorInterval int `mapstructure:"health_checker_monitor_interval" validate:"gt=0"`

	HTTPPort    string `mapstructure:"http_port"    validate:"required,numeric"`
	HTTPTimeout int    `mapstructure:"http_timeout"`

	PrometheusPort    string `mapstructure:"prometheus_port"    validate:"required,numeric"`
	PrometheusTimeout int    `mapstructure:"prometheus_timeout"`
}

var Conf Config

func init() {
	err := loadEnvConfig(&Conf)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.String("error", err.Error()))
	}
}

func loadEnvConfig(cfg *Config) error {
	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setupDefaults()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError

		ok := errors.As(err, &configFileNotFoundError)
		if !ok {
			return err
		}
	}

	err = viper.Unmarshal(cfg)
	if err != nil {
		return err
	}

	err = validator.New().Struct(cfg)
	if err != nil {
		return err
	}

	return nil
}

func setupDefaults() {
	confType := reflect.TypeOf(Conf)
	for i := range confType.NumField() {
		field := confType.Field(i)
		viper.SetDefault(field.Tag.Get("mapstructure"), "")
	}

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_USERNAME", "callpath")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_DATABASE", "callpath")
	viper.SetDefault("DB_INTERVAL_CB", "30")
	viper.SetDefault("DB_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("KAFKA_BOOTSTRAP_SERVER", "localhost:9092")
	viper.SetDefault("KAFKA_SASL_ENABLED", "false")
	viper.SetDefault("KAFKA_SASL_MECHANISM", "SCRAM-SHA-512")
	viper.SetDefault("KAFKA_CDR_TOPIC", "pbx-cdr-events")
	viper.SetDefault("KAFKA_CDR_GROUP_ID", "callpath-cdr")
	viper.SetDefault("KAFKA_JOURNEY_TOPIC", "ivr-journey-events")
	viper.SetDefault("KAFKA_INTERVAL_CB", "30")
	viper.SetDefault("KAFKA_CONSECUTIVE_FAILURES_CB", "5")
	viper.SetDefault("KAFKA_RETRY_MAX_ATTEMPTS", "3")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("SNAPSHOT_ENABLED", "false")
	viper.SetDefault("MINIO_SECURE", "true")
	viper.SetDefault("MINIO_MAX_RETRY_ATTEMPTS", "3")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MIN_SECONDS", "1")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MAX_SECONDS", "10")
	viper.SetDefault("MINIO_PATH_PREFIX", "ivr-journeys")
	viper.SetDefault("MINIO_TIMEOUT", "60")
	viper.SetDefault("MINIO_INTERVAL_CB", "300")
	viper.SetDefault("MINIO_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("POOL_SIZE", "10")
	viper.SetDefault("DEAD_LETTER_POOL_SIZE", "3")
	viper.SetDefault("DEADLETTER_CALL_MAX_RETRIES", "10")
	viper.SetDefault("DEADLETTER_CALL_LIMIT", "100")
	viper.SetDefault("DEADLETTER_CALL_INTERVAL", "1")
	viper.SetDefault("DEADLETTER_CALL_RETRY_DELAY", "1")
	viper.SetDefault("HEALTH_CHECKER_MONITOR_INTERVAL", "60")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("HTTP_TIMEOUT", "30")
	viper.SetDefault("PROMETHEUS_PORT", "2112")
	viper.SetDefault("PROMETHEUS_TIMEOUT", "60")
}
