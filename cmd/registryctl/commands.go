package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogurasousui/company-registry/internal/app"
	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/user"
	"github.com/ogurasousui/company-registry/internal/platform/config"
	"github.com/ogurasousui/company-registry/internal/platform/db/migrate"
	"github.com/ogurasousui/company-registry/internal/platform/logger"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(config.EffectivePath(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp は設定を読み込み App を組み立てて fn を実行します。
func withApp(ctx context.Context, path string, fn func(*app.App) error) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func migrateCmd(cfgPath func() string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|drop|version]",
		Short:     "Apply database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "drop", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			cfg, err := loadConfig(cfgPath())
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate requires store.driver %q", config.StoreDriverPostgres)
			}

			res, err := migrate.Run(action, dir, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("migration %s failed: %w", action, err)
			}
			if !res.Applied {
				fmt.Fprintf(cmd.OutOrStdout(), "migration %s completed: no migration applied\n", action)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migration %s completed: version=%d dirty=%t\n", action, res.Version, res.Dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory containing migration files (defaults to the embedded set)")
	return cmd
}

func sweepCmd(cfgPath func() string) *cobra.Command {
	var threshold time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Refresh every record older than the staleness threshold once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), func(a *app.App) error {
				t := a.Config.Registry.StalenessThreshold
				if cmd.Flags().Changed("threshold") {
					t = threshold
				}
				report, err := a.Orchestrator.RefreshAll(cmd.Context(), a.Config.Registry.Source, t)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "override registry.staleness_threshold")
	return cmd
}

func fetchCmd(cfgPath func() string) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "fetch <code>",
		Short: "Print a company record, refreshing it from the registry when stale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), func(a *app.App) error {
				age := a.Config.Registry.ReadMaxAge
				if cmd.Flags().Changed("max-age") {
					age = maxAge
				}
				rec, err := a.Cache.GetOrRefresh(cmd.Context(), args[0], a.Config.Registry.Source, age)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), recordView(rec))
			})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "override registry.read_max_age")
	return cmd
}

func subscribeCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <user-id> <code>",
		Short: "Subscribe a user to change notifications for a company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), func(a *app.App) error {
				sub, err := a.Subscriptions.Subscribe(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscribed: %s\n", sub.ID)
				return nil
			})
		},
	}
}

func unsubscribeCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <user-id> <code>",
		Short: "Remove a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), func(a *app.App) error {
				if err := a.Subscriptions.Unsubscribe(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "unsubscribed")
				return nil
			})
		},
	}
}

func userCmd(cfgPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email, name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath(), func(a *app.App) error {
				u, err := a.Users.CreateUser(cmd.Context(), user.CreateUserInput{Email: email, Name: name})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&name, "name", "", "display name")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}

func recordView(rec *company.Record) map[string]any {
	view := map[string]any{
		"id":           rec.ID,
		"code":         rec.Code,
		"last_updated": rec.LastUpdated,
		"created_at":   rec.CreatedAt,
	}
	for _, f := range company.AllFields {
		if v := rec.Get(f); v != nil {
			view[string(f)] = *v
		} else {
			view[string(f)] = nil
		}
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
