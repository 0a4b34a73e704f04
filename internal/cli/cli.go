// Package cli holds the livingctl maintenance commands.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/saxon-wu/living/config"
	"github.com/saxon-wu/living/internal/database"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Opener connects to the database named by the environment.
type Opener func() (*gorm.DB, error)

// FromConfig opens the database described by config.Load.
func FromConfig() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.IsDevelopment())
	return database.Open(database.Options{URL: cfg.DatabaseURL, IsDevelopment: cfg.IsDevelopment()})
}

func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "livingctl",
		Short: "living maintenance tool",
		Example: `livingctl migrate
livingctl tags tree
livingctl articles purge --older-than 720h`,
		SilenceUsage: true,
	}

	root.AddCommand(migrateCommand(open), tagsCommand(open), articlesCommand(open))
	root.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	root.CompletionOptions.HiddenDefaultCmd = true

	return root
}

func migrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(open, func(db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func tagsCommand(open Opener) *cobra.Command {
	tags := &cobra.Command{
		Use:   "tags",
		Short: "tag commands",
	}

	tags.AddCommand(&cobra.Command{
		Use:   "tree",
		Short: "Print the tag hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(open, func(db *gorm.DB) error {
				nodes, err := services.NewTagService(db, nil).Tree(cmd.Context())
				if err != nil {
					return err
				}
				printTree(cmd.OutOrStdout(), nodes, 0)
				return nil
			})
		},
	})

	return tags
}

func articlesCommand(open Opener) *cobra.Command {
	articles := &cobra.Command{
		Use:   "articles",
		Short: "article commands",
	}

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete articles soft-deleted longer ago than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withDB(open, func(db *gorm.DB) error {
				svc := services.NewArticleService(db, services.ArticleOptions{})
				purged, err := svc.Purge(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d articles\n", purged)
				return nil
			})
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum time since soft delete")

	articles.AddCommand(purge)
	return articles
}

func withDB(open Opener, fn func(*gorm.DB) error) error {
	db, err := open()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)
	return fn(db)
}

func printTree(w io.Writer, nodes []*models.TagNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), n.Name, n.UUID)
		printTree(w, n.Children, depth+1)
	}
}
