package cmd

import (
	"context"
	"io"
	"os"

	"github.com/danielolaszy/marvin/internal/config"
	"github.com/danielolaszy/marvin/internal/github"
	"github.com/danielolaszy/marvin/internal/jira"
	"github.com/danielolaszy/marvin/internal/logging"
	"github.com/danielolaszy/marvin/internal/redmine"
	"github.com/danielolaszy/marvin/internal/tracker"
)

// trackerClient is a backend that can verify its connection.
type trackerClient interface {
	tracker.Client
	Connect(ctx context.Context) error
}

// newTracker builds the backend selected by cfg.Type. Tests replace it.
var newTracker = func(cfg config.TrackerConfig) (trackerClient, error) {
	switch cfg.Type {
	case config.TrackerJira:
		return jira.NewClient(jira.Config{
			URL:      cfg.URL,
			Username: cfg.Username,
			Token:    cfg.APIKey,
		})
	case config.TrackerGitHub:
		return github.NewClient(github.Config{
			Domain: cfg.URL,
			Token:  cfg.APIKey,
		})
	default:
		return redmine.NewClient(redmine.Config{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Version: cfg.Version,
			Logger:  logging.GetLogger(),
		})
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// loadConfig reads the configuration file and points the default logger at
// the configured level and file. The returned closer releases the log file.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.Logging.File != "" {
		fw, fc, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return nil, nil, err
		}
		w, closer = fw, fc
	}
	logging.SetupLogger(w, logging.ParseLevel(level))

	logging.Debug("configuration loaded",
		"path", configPath,
		"actions", len(cfg.Actions),
		"time_zone", cfg.Location().String())
	return cfg, closer, nil
}

// connectTracker creates the configured backend and checks the credentials.
func connectTracker(ctx context.Context, cfg config.TrackerConfig) (tracker.Client, error) {
	logging.Info("tracker configuration",
		"type", cfg.Type,
		"url", cfg.URL,
		"version", cfg.Version,
		"username", cfg.Username,
		"api_key", logging.MaskSensitive(cfg.APIKey))

	client, err := newTracker(cfg)
	if err != nil {
		return nil, &tracker.ConnectionError{Backend: cfg.Type, Err: err}
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
