package database

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

const (
	AppDirName       = ".delivery-zoner"
	SQLiteDBFileName = "data.db"
	ConfigFileName   = "config.yaml"
)

// GetAppDir returns ~/.delivery-zoner, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get home directory")
	}

	appDir := filepath.Join(homeDir, AppDirName)
	if err := os.MkdirAll(appDir, 0700); err != nil {
		return "", eris.Wrap(err, "failed to create app directory")
	}

	return appDir, nil
}

// GetDefaultDBPath returns the default SQLite database path: ~/.delivery-zoner/data.db
func GetDefaultDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SQLiteDBFileName), nil
}
