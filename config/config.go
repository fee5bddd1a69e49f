package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultUploadsSubDir    = "uploads"
)

const (
	defaultThumbnailMaxSize    = 300
	defaultBatchQueueSize      = 16
	defaultNumBatchWorkers     = 1
	defaultBatchConcurrency    = 1
	defaultAnalysisMaxAttempts = 3
	defaultAnalysisBaseDelayMS = 1000
	defaultWatchDebounceMS     = 3000
	defaultOpenAIModel         = "gpt-4o"
)

type Config struct {
	// source directory (where user image folders are scanned)
	RootDirectory string

	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for generated assets (thumbs, uploads)
	ThumbnailsPath   string // full-calculated path for thumbnails
	UploadsPath      string // full-calculated path for uploaded batches

	// thumbnail generation settings
	GenerateThumbnails bool
	ThumbnailMaxSize   int

	// vision service settings
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string // empty means the public endpoint
	AnalysisMaxAttempts int
	AnalysisBaseDelay   time.Duration

	// batch worker settings
	BatchQueueSize   int
	NumBatchWorkers  int
	BatchConcurrency int

	// directory watch settings
	WatchEnabled  bool
	WatchDebounce time.Duration
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("ROOT_DIRECTORY", ".")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", "images.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	absUploadsPath := filepath.Join(absMediaStorage, uploadsSubDir)

	// a missing credential is a configuration failure and must abort startup
	// before any batch begins
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	cfg := Config{
		RootDirectory:       absRoot,
		DatabasePath:        dbPath,
		MediaStoragePath:    absMediaStorage,
		ThumbnailsPath:      absThumbnailsPath,
		UploadsPath:         absUploadsPath,
		GenerateThumbnails:  getEnvBoolOrDefault("GENERATE_THUMBNAILS", true),
		ThumbnailMaxSize:    getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize),
		OpenAIAPIKey:        apiKey,
		OpenAIModel:         getEnvOrDefault("OPENAI_MODEL", defaultOpenAIModel),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		AnalysisMaxAttempts: getEnvIntOrDefault("ANALYSIS_MAX_ATTEMPTS", defaultAnalysisMaxAttempts),
		AnalysisBaseDelay:   time.Duration(getEnvIntOrDefault("ANALYSIS_BASE_DELAY_MS", defaultAnalysisBaseDelayMS)) * time.Millisecond,
		BatchQueueSize:      getEnvIntOrDefault("BATCH_QUEUE_SIZE", defaultBatchQueueSize),
		NumBatchWorkers:     getEnvIntOrDefault("NUM_BATCH_WORKERS", defaultNumBatchWorkers),
		BatchConcurrency:    getEnvIntOrDefault("BATCH_CONCURRENCY", defaultBatchConcurrency),
		WatchEnabled:        getEnvBoolOrDefault("WATCH_ENABLED", false),
		WatchDebounce:       time.Duration(getEnvIntOrDefault("WATCH_DEBOUNCE_MS", defaultWatchDebounceMS)) * time.Millisecond,
	}

	return cfg, nil
}
