package save

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appDirName       = "watcher"
	databaseFileName = "transcript.db"
	logFileName      = "log.txt"
)

// ConfigDir is the directory settings and state live in.
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir() // depends on OS
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, appDirName), nil
}

// DataDir is the directory for the transcript database and logs.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appDirName)
}

func DatabasePath() string {
	return filepath.Join(DataDir(), databaseFileName)
}

func LogPath() string {
	return filepath.Join(DataDir(), logFileName)
}
