package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/liveness"
	"gopkg.in/yaml.v3"
)

//go:embed liveness.yaml
var livenessYAML []byte

// Ledger backends
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	FaceService FaceServiceConfig
	Gallery     GalleryConfig
	Detection   DetectionConfig
	Liveness    liveness.Config
	Ledger      LedgerConfig
	Database    DatabaseConfig
	MariaDB     MariaDBConfig
	Log         LogConfig
	Web         WebConfig
}

type FaceServiceConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per request, defaults to 10s
}

type GalleryConfig struct {
	Dir       string  // one reference image per person
	IndexPath string  // optional HNSW export, rebuilt from Dir when empty
	Tolerance float64 // max embedding distance for a match
}

type DetectionConfig struct {
	Scale float64 // frames are shrunk by this factor before detection
}

type LedgerConfig struct {
	Backend        string // csv, postgres or mariadb
	File           string // CSV ledger path
	DegradeOnError bool   // keep recognising when the ledger cannot be written
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:secret@tcp(mariadb:3306)/attendance
}

type LogConfig struct {
	Level string // logrus level name
	File  string // rotated log file, empty for stderr only
}

type WebConfig struct {
	Host     string
	Port     int
	APIToken string // bearer token for the attendance routes, empty disables auth
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a time.Duration such as "2.5s", falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

// loadLiveness reads the embedded defaults, then the optional override file.
func loadLiveness(overridePath string) (liveness.Config, error) {
	var cfg liveness.Config
	if err := yaml.Unmarshal(livenessYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded liveness.yaml: " + err.Error())
	}

	if overridePath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(overridePath) //nolint:gosec // path is from trusted config
	if err != nil {
		return cfg, fmt.Errorf("reading liveness config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing liveness config %s: %w", overridePath, err)
	}
	return cfg, nil
}

func Load() (*Config, error) {
	lv, err := loadLiveness(os.Getenv("LIVENESS_CONFIG"))
	if err != nil {
		return nil, err
	}
	lv.EARThreshold = envFloat("EAR_THRESH", lv.EARThreshold)
	lv.EARConsecFrames = envInt("EAR_CONSEC_FRAMES", lv.EARConsecFrames)
	lv.HeadTurnPixelThreshold = envFloat("HEAD_TURN_PIXEL_THRESH", lv.HeadTurnPixelThreshold)
	lv.ChallengeTimeoutFrames = envInt("LIVENESS_CHALLENGE_TIMEOUT", lv.ChallengeTimeoutFrames)
	lv.ChallengeTimeout = envDuration("LIVENESS_CHALLENGE_TIMEOUT_DURATION", lv.ChallengeTimeout)
	lv.IdleEvictFrames = uint64(envInt("TRACKER_IDLE_EVICT_FRAMES", int(lv.IdleEvictFrames)))

	cfg := &Config{
		FaceService: FaceServiceConfig{
			URL:     os.Getenv("FACE_SERVICE_URL"),
			Timeout: envDuration("FACE_SERVICE_TIMEOUT", 10*time.Second),
		},
		Gallery: GalleryConfig{
			Dir:       envString("KNOWN_FACES_DIR", constants.DefaultKnownFacesDir),
			IndexPath: os.Getenv("GALLERY_INDEX_PATH"),
			Tolerance: envFloat("MATCH_TOLERANCE", constants.DefaultMatchTolerance),
		},
		Detection: DetectionConfig{
			Scale: envFloat("DETECTION_SCALE", constants.DefaultDetectionScale),
		},
		Liveness: lv,
		Ledger: LedgerConfig{
			Backend:        strings.ToLower(envString("LEDGER_BACKEND", BackendCSV)),
			File:           envString("ATTENDANCE_FILE", constants.DefaultAttendanceFile),
			DegradeOnError: envBool("LEDGER_DEGRADE_ON_ERROR"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Web: WebConfig{
			Host:     envString("WEB_HOST", "0.0.0.0"),
			Port:     envInt("WEB_PORT", 8080),
			APIToken: os.Getenv("WEB_API_TOKEN"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed with a default.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendCSV:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required for the postgres ledger")
		}
	case BackendMariaDB:
		if c.MariaDB.DSN == "" {
			return errors.New("MARIADB_DSN environment variable is required for the mariadb ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q (want csv, postgres or mariadb)", c.Ledger.Backend)
	}

	if c.Detection.Scale <= 0 || c.Detection.Scale > 1 {
		return fmt.Errorf("DETECTION_SCALE must be in (0, 1], got %v", c.Detection.Scale)
	}
	if c.Liveness.EARConsecFrames < 1 {
		return fmt.Errorf("ear_consec_frames must be at least 1, got %d", c.Liveness.EARConsecFrames)
	}
	if c.Liveness.ChallengeTimeoutFrames < 1 {
		return fmt.Errorf("challenge_timeout_frames must be at least 1, got %d", c.Liveness.ChallengeTimeoutFrames)
	}
	return nil
}
