package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates every configuration section the engine and its
// optional control-plane need. Loaded in two phases, like the teacher's
// original LoadConfig: first an optional .env file, then environment
// variables with defaults.
type Config struct {
	App      AppConfig
	Sheet    SheetConfig
	Drive    DriveConfig
	Worker   WorkerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Control  ControlConfig
}

type AppConfig struct {
	Name string
	Env  string
}

// SheetConfig names the remote tabular document the engine shares against.
// DocumentID and SheetTitle are required.
type SheetConfig struct {
	DocumentID string
	SheetTitle string
}

// DriveConfig carries the opaque credential capability from spec §1.
// At least one of RefreshToken or ServiceAccountFile must be set; when both
// are, the service-account file is used.
type DriveConfig struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountFile string
}

// WorkerConfig tunes the WorkerPool and HistoryStore checkpoint cadence.
type WorkerConfig struct {
	PoolSize         int
	HistoryBatchSize int
	RateLimitSleep   time.Duration
	CallTimeout      time.Duration
	InitTimeout      time.Duration
	HistoryFilePath  string
	TTYDashboard     bool
	ScheduleCron     string
}

// PostgresConfig is optional: empty DSN means the run-history audit trail
// is a no-op.
type PostgresConfig struct {
	DSN string
}

// RedisConfig is optional: empty Addr means the engine runs single-process
// with no distributed lock and no event relay.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	LockKey      string
	LockTTL      time.Duration
	EventChannel string
}

type JWTConfig struct {
	Secret string
}

// ControlConfig is optional: empty Addr means the control-plane HTTP
// surface is not started and the CLI run is the only interface.
type ControlConfig struct {
	Addr string
}

// LoadConfig loads .env then environment variables with defaults, and
// validates the variables spec §6 marks required (document id, sheet
// title, credential source). Missing required variables are aggregated
// into a single diagnostic rather than failing on the first one.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	poolSize, _ := strconv.Atoi(getEnv("WORKER_POOL_SIZE", "16"))
	historyBatch, _ := strconv.Atoi(getEnv("WORKER_HISTORY_BATCH_SIZE", "10"))
	rateLimitMS, _ := strconv.Atoi(getEnv("WORKER_RATE_LIMIT_MS", "100"))
	callTimeoutS, _ := strconv.Atoi(getEnv("WORKER_CALL_TIMEOUT_SECONDS", "30"))
	initTimeoutS, _ := strconv.Atoi(getEnv("WORKER_INIT_TIMEOUT_SECONDS", "5"))
	lockTTLS, _ := strconv.Atoi(getEnv("REDIS_LOCK_TTL_SECONDS", "3600"))

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "folder-share-engine"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Sheet: SheetConfig{
			DocumentID: getEnv("SHEET_DOCUMENT_ID", ""),
			SheetTitle: getEnv("SHEET_TITLE", ""),
		},
		Drive: DriveConfig{
			ClientID:           getEnv("DRIVE_CLIENT_ID", ""),
			ClientSecret:       getEnv("DRIVE_CLIENT_SECRET", ""),
			RefreshToken:       getEnv("DRIVE_REFRESH_TOKEN", ""),
			ServiceAccountFile: getEnv("DRIVE_SERVICE_ACCOUNT_FILE", ""),
		},
		Worker: WorkerConfig{
			PoolSize:         poolSize,
			HistoryBatchSize: historyBatch,
			RateLimitSleep:   time.Duration(rateLimitMS) * time.Millisecond,
			CallTimeout:      time.Duration(callTimeoutS) * time.Second,
			InitTimeout:      time.Duration(initTimeoutS) * time.Second,
			HistoryFilePath:  getEnv("WORKER_HISTORY_FILE", "history.json"),
			TTYDashboard:     getEnv("TTY_DASHBOARD", "false") == "true",
			ScheduleCron:     getEnv("SCHEDULE_CRON", ""),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			LockKey:      getEnv("REDIS_LOCK_KEY", "folder-share-engine:run-lock"),
			LockTTL:      time.Duration(lockTTLS) * time.Second,
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "folder-share-engine:events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Control: ControlConfig{
			Addr: getEnv("CONTROL_ADDR", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string

	if c.Sheet.DocumentID == "" {
		missing = append(missing, "SHEET_DOCUMENT_ID")
	}
	if c.Sheet.SheetTitle == "" {
		missing = append(missing, "SHEET_TITLE")
	}
	if c.Drive.RefreshToken == "" && c.Drive.ServiceAccountFile == "" {
		missing = append(missing, "DRIVE_REFRESH_TOKEN or DRIVE_SERVICE_ACCOUNT_FILE")
	}
	if c.Drive.RefreshToken != "" && (c.Drive.ClientID == "" || c.Drive.ClientSecret == "") {
		missing = append(missing, "DRIVE_CLIENT_ID and DRIVE_CLIENT_SECRET (required alongside DRIVE_REFRESH_TOKEN)")
	}
	if c.Control.Addr != "" && c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET (required when CONTROL_ADDR is set)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
