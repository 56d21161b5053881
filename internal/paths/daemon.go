package paths

import (
	"os"
	"path/filepath"
)

// GetDaemonDir returns the per-user directory holding daemon state
// (PID file, log, auth token). It is not created by this call.
func GetDaemonDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".polyvis"), nil
}

// EnsureDaemonDir creates the daemon directory if needed and returns it.
func EnsureDaemonDir() (string, error) {
	dir, err := GetDaemonDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetDaemonLogPath returns the daemon log file path.
func GetDaemonLogPath() (string, error) {
	dir, err := GetDaemonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}

// GetPIDFilePath returns the daemon PID file path.
func GetPIDFilePath() (string, error) {
	dir, err := GetDaemonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// GetTokenFilePath returns the path of the stored daemon auth token hash.
func GetTokenFilePath() (string, error) {
	dir, err := GetDaemonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.token"), nil
}
