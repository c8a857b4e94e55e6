// Package config loads the greenflow server configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config is the top-level configuration for the greenflow server.
type Config struct {
	// Port is the HTTP listen port.
	Port int `json:"port"`

	// ScriptsDir is the directory automation scripts are stored in, one
	// JSON file per script.
	ScriptsDir string `json:"scriptsDir"`

	// DatabasePath is the SQLite database holding run history.
	DatabasePath string `json:"databasePath"`

	// CORSOrigins lists the origins allowed to call the API from a
	// browser.
	CORSOrigins []string `json:"corsOrigins"`

	// DriverWorkers bounds the number of driver calls in flight across
	// all sessions.
	DriverWorkers int `json:"driverWorkers"`

	// S3270Path is the s3270 binary used to talk to 3270 hosts.
	S3270Path string `json:"s3270Path"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Port:          8080,
		ScriptsDir:    "scripts",
		DatabasePath:  "greenflow.db",
		CORSOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		DriverWorkers: 8,
		S3270Path:     "s3270",
	}
}

// Parse reads the JSON config file and returns the parsed Config. The file
// path is taken from the GREENFLOW_CONFIG env var, defaulting to
// "greenflow.json". A missing file yields the defaults.
func Parse() (*Config, error) {
	path := os.Getenv("GREENFLOW_CONFIG")
	if path == "" {
		path = "greenflow.json"
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
