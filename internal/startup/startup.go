package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"media-index/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Config holds all application configuration.
type Config struct {
	MediaDir    string
	DatabaseDir string
	Port        string

	ScanInterval      time.Duration
	ScanOnStartup     bool
	WatcherEnabled    bool
	GeocodeEnabled    bool
	GeocodeURL        string
	NewFilesThreshold time.Duration

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables.
func LoadConfig() (*Config, error) {
	logging.Info("media-index %s (%s, built %s, %s)", Version, Commit, BuildTime, GoVersion)

	mediaDir := getEnv("MEDIA_DIR", "/media")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	scanIntervalStr := getEnv("SCAN_INTERVAL", "6h")
	scanOnStartup := getEnvBool("SCAN_ON_STARTUP", true)
	watcherEnabled := getEnvBool("ENABLE_WATCHER", true)
	geocodeEnabled := getEnvBool("GEOCODE_ENABLED", false)
	geocodeURL := getEnv("GEOCODE_URL", "")
	newThresholdHours := getEnvInt("NEW_FILES_THRESHOLD_HOURS", 72)

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:                 %s", mediaDir)
	logging.Info("  DATABASE_DIR:              %s", databaseDir)
	logging.Info("  PORT:                      %s", port)
	logging.Info("  SCAN_INTERVAL:             %s", scanIntervalStr)
	logging.Info("  SCAN_ON_STARTUP:           %v", scanOnStartup)
	logging.Info("  ENABLE_WATCHER:            %v", watcherEnabled)
	logging.Info("  GEOCODE_ENABLED:           %v", geocodeEnabled)
	logging.Info("  NEW_FILES_THRESHOLD_HOURS: %d", newThresholdHours)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())

	scanInterval, err := time.ParseDuration(scanIntervalStr)
	if err != nil {
		logging.Warn("  Invalid SCAN_INTERVAL, using default: 6h")
		scanInterval = 6 * time.Hour
	}

	mediaDir, err = filepath.Abs(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	if fi, err := os.Stat(mediaDir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("media directory %s is not accessible", mediaDir)
	}
	if err := os.MkdirAll(databaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}

	return &Config{
		MediaDir:          mediaDir,
		DatabaseDir:       databaseDir,
		Port:              port,
		ScanInterval:      scanInterval,
		ScanOnStartup:     scanOnStartup,
		WatcherEnabled:    watcherEnabled,
		GeocodeEnabled:    geocodeEnabled,
		GeocodeURL:        geocodeURL,
		NewFilesThreshold: time.Duration(newThresholdHours) * time.Hour,
		DatabasePath:      filepath.Join(databaseDir, "media-index.db"),
	}, nil
}

func testWriteAccess(dir string) error {
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("failed to remove write probe %s: %v", probe, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Invalid boolean for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("Invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
