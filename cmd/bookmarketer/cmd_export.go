package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/bookmarketer/internal/session"
	"github.com/vampirenirmal/bookmarketer/internal/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var sessionID, format, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a session document as JSON or YAML",
		Long: `Write every stored record of a session as one document. Without --out
the file is placed under <output_dir>/exports. Use --out - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			sess, err := a.readSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			now := time.Now()
			data, err := session.Encode(sess.Export(now), format)
			if err != nil {
				return err
			}

			if outPath == "-" {
				_, err := a.stdout.Write(data)
				return err
			}
			if outPath == "" {
				name := storage.ExportName(sess.ID(), sess.Book().Title, format, now)
				outPath = filepath.Join(a.cfg.Storage.OutputDir, "exports", name)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("creating export directory: %w", err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			a.output().Success("Exported to " + outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	cmd.Flags().StringVar(&format, "format", "json", "Document format (json or yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
