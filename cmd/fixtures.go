/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yamdb/apiserver/config"
	"github.com/yamdb/apiserver/internal/storage"
)

const csvContentType = "text/csv"

var (
	fixturesDir    string
	fixturesPrefix string
)

// fixturesCmd groups fixture management commands.
var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "Manage CSV fixtures in object storage",
}

var fixturesUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the CSV files in --dir to the storage bucket",
	Long: `Uploads every *.csv file in --dir under --prefix so that
"yamdb import --bucket-prefix" can load them. Usage:

	yamdb fixtures upload --dir ./static/data --prefix data/
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		files, err := filepath.Glob(filepath.Join(fixturesDir, "*.csv"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no csv files in %s", fixturesDir)
		}

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}

		for _, file := range files {
			key := path.Join(fixturesPrefix, filepath.Base(file))
			if err := uploadFile(cmd, objects, file, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to %s/%s\n", file, objects.Bucket(), key)
		}
		return nil
	},
}

func uploadFile(cmd *cobra.Command, objects *storage.Storage, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := objects.Put(cmd.Context(), key, f, info.Size(), csvContentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(fixturesCmd)
	fixturesCmd.AddCommand(fixturesUploadCmd)

	fixturesUploadCmd.Flags().StringVar(&fixturesDir, "dir", "static/data", "local directory holding the CSV files")
	fixturesUploadCmd.Flags().StringVar(&fixturesPrefix, "prefix", "data", "object key prefix")
}
