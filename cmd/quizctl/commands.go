package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ad/go-telegram-levelquiz/internal/catalog"
	"github.com/ad/go-telegram-levelquiz/internal/config"
	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/ad/go-telegram-levelquiz/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type options struct {
	dbPath      string
	catalogPath string
	redisAddr   string
	redisPass   string
	redisDB     int
	lockTTL     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{
		dbPath:      config.DefaultDBPath,
		catalogPath: config.DefaultCatalogPath,
		lockTTL:     config.DefaultLockTTL,
	}
	if cfg, err := config.FromEnv(); err == nil {
		opts.dbPath = cfg.DBPath
		opts.catalogPath = cfg.CatalogPath
		opts.redisAddr = cfg.RedisAddr
		opts.redisPass = cfg.RedisPassword
		opts.redisDB = cfg.RedisDB
		opts.lockTTL = cfg.LockTTL
	}

	cmd := &cobra.Command{
		Use:           "quizctl",
		Short:         "Operator tools for the level quiz bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", opts.dbPath, "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", opts.catalogPath, "path to the YAML catalog")
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", opts.redisAddr, "Redis address shared with running bots (empty for in-process locks)")

	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newDeleteUserCmd(opts))
	cmd.AddCommand(newValidateCatalogCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the progress report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := services.ParseFilter(filter)
			if err != nil {
				return err
			}
			return withQueue(opts.dbPath, func(queue *db.DBQueue) error {
				report, err := services.NewStatisticsService(db.NewProgressRepository(queue)).Build(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), services.FormatReport(report))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", string(services.FilterAll), "all, completed or active")
	return cmd
}

func newDeleteUserCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <telegram-id>",
		Short: "Delete a user's progress, polls and profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid telegram id %q: %w", args[0], err)
			}

			locker, closeLocker, err := openLocker(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeLocker()

			return withQueue(opts.dbPath, func(queue *db.DBQueue) error {
				manager := services.NewUserManager(db.NewProgressRepository(queue), locker)
				if err := manager.DeleteUser(cmd.Context(), identity); err != nil {
					if errors.Is(err, models.ErrProgressNotFound) {
						return fmt.Errorf("no user found with telegram id %d", identity)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted user %d\n", identity)
				return nil
			})
		},
	}
}

func newValidateCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-catalog [path]",
		Short: "Check a catalog file without starting the bot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.catalogPath
			if len(args) == 1 {
				path = args[0]
			}
			c, err := catalog.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d level(s)\n", path, len(c.LevelIDs()))
			for _, id := range c.LevelIDs() {
				intro := "no intro"
				if _, ok := c.Intro(id); ok {
					intro = "intro"
				}
				fmt.Fprintf(out, "  level %d (shown as Level %d): %d question(s), %s\n", id, models.DisplayLevel(id), c.QuestionCount(id), intro)
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, err := db.Open(opts.dbPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", opts.dbPath)
			return nil
		},
	}
}

func withQueue(path string, fn func(*db.DBQueue) error) error {
	sqlDB, err := db.Open(path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	queue := db.NewDBQueue(sqlDB)
	defer queue.Close()
	return fn(queue)
}

// openLocker takes the same lock a running bot would, so a deletion never races an update.
func openLocker(ctx context.Context, opts *options) (services.Locker, func(), error) {
	if opts.redisAddr == "" {
		return services.NewKeyedLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: opts.redisAddr, Password: opts.redisPass, DB: opts.redisDB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", opts.redisAddr, err)
	}
	return services.NewRedisLocker(client, opts.lockTTL), func() { client.Close() }, nil
}
