// ABOUTME: Shared command setup: config, logger, API client and journal
// ABOUTME: Builds the upserter every write command runs through
package cli

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/logging"
	"github.com/hotgluexyz/target-everyaction/sync"
)

// env is everything a command needs to talk to EveryAction.
type env struct {
	cfg      *sync.Config
	logger   zerolog.Logger
	client   *everyaction.Client
	upserter *sync.Upserter
	journal  *sql.DB
}

type setupOptions struct {
	// quiet discards logs, used while a full-screen view owns the terminal.
	quiet bool
	// onlyEmpty overrides the configured merge mode when non-nil.
	onlyEmpty *bool
	// journal opens the local journal unless --no-journal is set.
	journal bool
}

func (o *rootOptions) newLogger(out io.Writer, quiet bool) zerolog.Logger {
	if quiet {
		return logging.Nop()
	}
	cfg := logging.DefaultConfig()
	if o.logLevel != "" {
		cfg.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Format = o.logFormat
	}
	cfg.Output = out
	return logging.New(cfg)
}

func (o *rootOptions) loadConfig() (*sync.Config, error) {
	cfg, err := sync.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run 'target-everyaction config init' or set EVERYACTION_APP_NAME and EVERYACTION_API_KEY)", err)
	}
	return cfg, nil
}

func (o *rootOptions) journalPath(cfg *sync.Config) string {
	switch {
	case o.dbPath != "":
		return o.dbPath
	case cfg != nil && cfg.DatabasePath != "":
		return cfg.DatabasePath
	default:
		return db.DefaultPath()
	}
}

// setup loads config and builds the client, upserter and journal. Logs go
// to stderr because stdout carries Singer state and command output.
func (o *rootOptions) setup(cmd *cobra.Command, opts setupOptions) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := o.newLogger(cmd.ErrOrStderr(), opts.quiet)

	client, err := everyaction.New(everyaction.Options{
		BaseURL:   cfg.BaseURL,
		AppName:   cfg.AppName,
		APIKey:    cfg.APIKey,
		RateLimit: cfg.RateLimit,
		Logger:    &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create EveryAction client: %w", err)
	}

	onlyEmpty := cfg.OnlyUpsertEmptyFields
	if opts.onlyEmpty != nil {
		onlyEmpty = *opts.onlyEmpty
	}

	e := &env{
		cfg:    cfg,
		logger: logger,
		client: client,
		upserter: sync.NewUpserter(client, sync.UpserterOptions{
			OnlyUpsertEmptyFields: onlyEmpty,
			Logger:                &logger,
		}),
	}

	if opts.journal && !o.noJournal {
		path := o.journalPath(cfg)
		e.journal, err = db.OpenDatabase(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
		}
		logger.Debug().Str("path", path).Msg("journal opened")
	}

	return e, nil
}

func (e *env) Close() {
	if e.journal != nil {
		_ = e.journal.Close()
	}
}

// onlyEmptyFlag returns the --only-empty value when it was set explicitly.
func onlyEmptyFlag(cmd *cobra.Command) *bool {
	if !cmd.Flags().Changed("only-empty") {
		return nil
	}
	v, err := cmd.Flags().GetBool("only-empty")
	if err != nil {
		return nil
	}
	return &v
}
