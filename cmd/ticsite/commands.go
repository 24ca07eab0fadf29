package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/database"
	"github.com/ticsummit/ticsite/internal/engagement"
	"github.com/ticsummit/ticsite/internal/seed"
	"github.com/ticsummit/ticsite/pkg/models"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert site content from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			catalog := content.NewCatalog(a.db, content.NewSanitizer())
			report, err := seed.New(a.db, catalog, a.log).ApplyFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&file, "file", "content.yaml", "seed document")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild view and like counters from the raw tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			report, err := engagement.NewService(a.db, nil, a.cfg.Engagement.ViewWindow, a.log).Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func newCleanupSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Delete expired and revoked sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			svc, err := auth.NewService(a.db, a.cfg.Auth, a.log)
			if err != nil {
				return err
			}
			n, err := svc.CleanupSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions\n", n)
			return nil
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			svc, err := auth.NewService(a.db, a.cfg.Auth, a.log)
			if err != nil {
				return err
			}
			user, err := svc.CreateUser(cmd.Context(), email, password, name, models.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
