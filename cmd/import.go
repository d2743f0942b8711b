/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yamdb/apiserver/config"
	"github.com/yamdb/apiserver/internal/db"
	"github.com/yamdb/apiserver/internal/importer"
	"github.com/yamdb/apiserver/internal/logging"
	"github.com/yamdb/apiserver/internal/storage"
	"github.com/yamdb/apiserver/internal/store"
)

var (
	importDir          string
	importBucketPrefix string
	importArchive      string
)

// importCmd loads the CSV fixture set.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import CSV fixtures into the database",
	Long: `Imports users, categories, genres, titles, reviews and comments from CSV
files. Usage:

	yamdb import --dir ./static/data
	yamdb import --bucket-prefix data/
	yamdb import --archive fixtures.tar.gz
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := 0
		for _, flag := range []string{"dir", "bucket-prefix", "archive"} {
			if cmd.Flags().Changed(flag) {
				sources++
			}
		}
		if sources != 1 {
			return errors.New("exactly one of --dir, --bucket-prefix or --archive is required")
		}

		cfg := config.LoadConfig()
		log := logging.New(cfg.Log, os.Stderr)
		ctx := cmd.Context()

		var src importer.Source
		switch {
		case cmd.Flags().Changed("dir"):
			src = importer.DirSource{Dir: importDir}
		case cmd.Flags().Changed("archive"):
			f, err := os.Open(importArchive)
			if err != nil {
				return err
			}
			archive, err := importer.ReadArchive(importArchive, f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("read %s: %w", importArchive, err)
			}
			log.Info("fixture bundle loaded", "file", importArchive, "sha256", archive.SHA256)
			src = archive
		default:
			objects, err := storage.Open(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer objects.Close()
			src = importer.BucketSource{Objects: objects, Prefix: importBucketPrefix}
		}

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		reports, err := importer.New(importer.Repositories{
			Users:      store.NewUserRepository(conn),
			Categories: store.NewCategoryRepository(conn),
			Genres:     store.NewGenreRepository(conn),
			Titles:     store.NewTitleRepository(conn),
			Reviews:    store.NewReviewRepository(conn),
			Comments:   store.NewCommentRepository(conn),
		}, log).Run(ctx, src)
		for _, r := range reports {
			status := fmt.Sprintf("%d imported, %d skipped", r.Imported, r.Skipped)
			if r.Missing {
				status = "missing"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", r.File, status)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDir, "dir", "", "local directory holding the CSV files")
	importCmd.Flags().StringVar(&importBucketPrefix, "bucket-prefix", "", "object key prefix in the configured storage bucket")
	importCmd.Flags().StringVar(&importArchive, "archive", "", "local .tar.gz bundle of CSV files")
}
