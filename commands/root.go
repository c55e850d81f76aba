package commands

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"review-tracker-go/config"
	"review-tracker-go/db"
	"review-tracker-go/logger"
	"review-tracker-go/models"
)

type rootOptions struct {
	configFile string
	dbPath     string

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCommand builds the review-tracker command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "review-tracker",
		Short:         "Track student reviews by class and subject",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.dbPath != "" {
				cfg.Database.Path = opts.dbPath
			}
			opts.cfg = cfg
			opts.logger = logger.NewWithWriter(cfg.Env, cfg.Log.Level, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./config.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database file, overrides database.path")

	cmd.AddCommand(
		newServeCommand(opts),
		newInitCommand(opts),
		newAddClassCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
	)
	return cmd
}

// openStore opens the store with the Redis write lock when one is configured.
// The returned cleanup closes everything that was opened.
func (o *rootOptions) openStore(ctx context.Context) (*db.ReviewStore, func(), error) {
	storeOpts := db.Options{Logger: o.logger}
	cleanup := func() {}

	if o.cfg.Redis.Enabled() {
		client, err := db.InitializeRedisClient(ctx, o.cfg.Redis)
		if err != nil {
			return nil, nil, errors.Wrap(err, "redis write lock")
		}
		o.logger.Info().Str("address", o.cfg.Redis.Address).Msg("using redis write lock")
		storeOpts.Locker = db.NewRedisLocker(client, o.cfg.Redis.LockKey, o.cfg.Redis.LockTTL, o.logger)
		cleanup = func() { _ = client.Close() }
	}

	store, err := db.OpenReviewStore(ctx, o.cfg.Database, storeOpts)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "open review store")
	}

	return store, func() {
		if err := store.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("error closing review store")
		}
		cleanup()
	}, nil
}

func newInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the tables and seed the default subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			subjects, err := store.ListSubjects(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s with %d subjects\n", opts.cfg.Database.Path, len(subjects))
			return nil
		},
	}
}

func newAddClassCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-class NAME",
		Short: "Add a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.NewClass{Name: args[0]}
			if err := req.Validate(); err != nil {
				return errors.Wrap(err, "invalid class name")
			}

			store, closeStore, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			clazz, err := store.AddClass(cmd.Context(), req.Name)
			if errors.Is(err, db.ErrDuplicateKey) {
				return errors.Errorf("class %q already exists", req.Name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added class %q (id %d)\n", clazz.Name, clazz.ID)
			return nil
		},
	}
}
