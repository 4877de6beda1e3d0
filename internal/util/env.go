package util

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	projectRootDir     string
	projectRootDirOnce sync.Once
)

// GetEnv returns the value of the ENV variable key or defaultVal if it is unset or empty.
func GetEnv(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && len(val) > 0 {
		return val
	}

	return defaultVal
}

func GetEnvAsInt(key string, defaultVal int) int {
	strVal := GetEnv(key, "")

	if val, err := strconv.Atoi(strVal); err == nil {
		return val
	}

	return defaultVal
}

func GetEnvAsUint64(key string, defaultVal uint64) uint64 {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseUint(strVal, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func GetEnvAsBool(key string, defaultVal bool) bool {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseBool(strVal); err == nil {
		return val
	}

	return defaultVal
}

// GetEnvAsDuration accepts Go duration strings ("1s", "2m") as well as a plain
// number of milliseconds.
func GetEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	strVal := GetEnv(key, "")
	if len(strVal) == 0 {
		return defaultVal
	}

	if val, err := time.ParseDuration(strVal); err == nil {
		return val
	}

	if ms, err := strconv.ParseInt(strVal, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return defaultVal
}

// GetEnvAsStringArr splits a separated ENV value into its trimmed, non-empty parts.
func GetEnvAsStringArr(key string, defaultVal []string, separator ...string) []string {
	strVal := GetEnv(key, "")
	if len(strVal) == 0 {
		return defaultVal
	}

	sep := ","
	if len(separator) >= 1 {
		sep = separator[0]
	}

	return SplitAndTrim(strVal, sep)
}

// SplitAndTrim splits s by sep and drops blank parts.
func SplitAndTrim(s string, sep string) []string {
	parts := strings.Split(s, sep)
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			res = append(res, p)
		}
	}

	return res
}

// LogLevelFromString parses a zerolog level, falling back to DebugLevel.
func LogLevelFromString(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to parse log level, defaulting to %s", zerolog.DebugLevel)
		return zerolog.DebugLevel
	}

	return l
}

// GetProjectRootDir returns the directory holding go.mod when run from within the
// repository, else the working directory of the binary. PROJECT_ROOT_DIR overrides both.
func GetProjectRootDir() string {
	projectRootDirOnce.Do(func() {
		if dir, ok := os.LookupEnv("PROJECT_ROOT_DIR"); ok && dir != "" {
			projectRootDir = dir
			return
		}

		wd, err := os.Getwd()
		if err != nil {
			log.Panic().Err(err).Msg("Failed to get working directory")
		}

		projectRootDir = wd
		for dir := wd; ; dir = filepath.Dir(dir) {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				projectRootDir = dir
				return
			}

			if filepath.Dir(dir) == dir {
				return
			}
		}
	})

	return projectRootDir
}

// RunningInTest reports whether the current binary was built by "go test".
func RunningInTest() bool {
	return strings.HasSuffix(os.Args[0], ".test")
}
