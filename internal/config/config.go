package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver string
	DBDSN    string

	// Canvas
	CanvasSearchLimit   int
	CanvasTimeout       time.Duration
	DefaultCourseSuffix string

	// Runs
	LoadWorkers  int
	ReportDir    string
	ReportBrotli bool

	// SFTP
	SFTPHost                  string
	SFTPPort                  int
	SFTPUser                  string
	SFTPPass                  string
	SFTPDir                   string
	SFTPInsecureIgnoreHostKey bool
	SFTPKnownHosts            string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env style files into the environment. Variables already
// set win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		// Database
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "canvas-load.db"),

		// Canvas
		CanvasSearchLimit:   getenvInt("CANVAS_SEARCH_LIMIT", 500),
		CanvasTimeout:       time.Duration(getenvInt("CANVAS_TIMEOUT_SECONDS", 120)) * time.Second,
		DefaultCourseSuffix: getenv("DEFAULT_COURSE_SUFFIX", "Sandbox"),

		// Runs
		LoadWorkers:  getenvInt("LOAD_WORKERS", 1),
		ReportDir:    getenv("REPORT_DIR", "reports"),
		ReportBrotli: getenvBool("REPORT_BROTLI", false),

		// SFTP
		SFTPHost:                  os.Getenv("SFTP_HOST"),
		SFTPPort:                  getenvInt("SFTP_PORT", 22),
		SFTPUser:                  os.Getenv("SFTP_USER"),
		SFTPPass:                  os.Getenv("SFTP_PASS"),
		SFTPDir:                   getenv("SFTP_DIR", "/inbound"),
		SFTPInsecureIgnoreHostKey: getenvBool("SFTP_INSECURE_IGNORE_HOSTKEY", true),
		SFTPKnownHosts:            os.Getenv("SFTP_KNOWN_HOSTS"),

		// Logging
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}
}

// SFTPEnabled reports whether enough is configured to attempt an upload.
func (c Config) SFTPEnabled() bool {
	return c.SFTPHost != "" && c.SFTPUser != "" && c.SFTPPass != ""
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
