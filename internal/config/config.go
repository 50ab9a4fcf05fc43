package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	MinPushTimeoutSec = 1
	MaxPushTimeoutSec = 9

	MinSyncIntervalSec = 1
)

type Config struct {
	APIBaseURL       string
	DataDir          string
	RoomID           string
	AccessToken      string
	LogLevel         string
	LogFormat        string
	LogFile          string
	LogMaxSizeMB     int
	SyncInterval     time.Duration
	PushTimeout      time.Duration
	DiscoveryTimeout time.Duration
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	MetricsPort      string
	KeyringService   string
	KeyringAccount   string
}

func Load() *Config {
	_ = godotenv.Load()

	pushTimeout := getEnvInt("PUSH_TIMEOUT_SEC", 8)
	if pushTimeout > MaxPushTimeoutSec {
		slog.Warn("PUSH_TIMEOUT_SEC exceeds limit. Clamping to maximum", "requested", pushTimeout, "limit", MaxPushTimeoutSec)
		pushTimeout = MaxPushTimeoutSec
	} else if pushTimeout < MinPushTimeoutSec {
		pushTimeout = MinPushTimeoutSec
	}

	interval := getEnvInt("SYNC_INTERVAL_SEC", 15)
	if interval < MinSyncIntervalSec {
		interval = MinSyncIntervalSec
	}

	backoffMin := time.Duration(getEnvInt("BACKOFF_MIN_SEC", 5)) * time.Second
	backoffMax := time.Duration(getEnvInt("BACKOFF_MAX_SEC", 300)) * time.Second
	if backoffMax < backoffMin {
		backoffMax = backoffMin
	}

	return &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		DataDir:    getEnv("DATA_DIR", "./data"),
		// POS_ROOM_ID wins over the older DEFAULT_ROOM_ID name
		RoomID:           getEnv("POS_ROOM_ID", getEnv("DEFAULT_ROOM_ID", "")),
		AccessToken:      getEnv("POS_ACCESS_TOKEN", ""),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		LogFormat:        getEnv("LOG_FORMAT", "TEXT"),
		LogFile:          getEnv("LOG_FILE", "pos-sync.log"),
		LogMaxSizeMB:     getEnvInt("LOG_MAX_SIZE_MB", 10),
		SyncInterval:     time.Duration(interval) * time.Second,
		PushTimeout:      time.Duration(pushTimeout) * time.Second,
		DiscoveryTimeout: time.Duration(getEnvInt("DISCOVERY_TIMEOUT_SEC", 5)) * time.Second,
		BackoffMin:       backoffMin,
		BackoffMax:       backoffMax,
		MetricsPort:      getEnv("METRICS_PORT", "9091"),
		KeyringService:   getEnv("KEYRING_SERVICE", "kgolf-pos"),
		KeyringAccount:   getEnv("KEYRING_ACCOUNT", "refresh-token"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
