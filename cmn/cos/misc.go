package cos

import (
	"io"
	"os"
	"strconv"
)

// CreateDir creates dir and any missing parents, tolerating an already-
// existing directory (common at process-edge startup, e.g. the socket
// directory a supervisor and its worker share).
func CreateDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Close closes c, swallowing the error — used at shutdown paths where
// the caller already has a more actionable error to report.
func Close(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func ParseBool(s string) (bool, error) { return strconv.ParseBool(s) }

func GetEnvOrDefault(key, dflt string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return dflt
}
