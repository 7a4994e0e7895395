package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/archive"
)

// ArchiveResult is the JSON payload of export and import.
type ArchiveResult struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Messages int    `json:"messages"`
}

type archiveOptions struct {
	bucket string
}

func (o *archiveOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.bucket, "bucket", "", "blob bucket URL (overrides archive.bucket)")
}

func (o *archiveOptions) resolve(app *App) (string, error) {
	bucket := o.bucket
	if bucket == "" {
		bucket = app.Config.Archive.Bucket
	}
	if bucket == "" {
		return "", NewExitError(ExitCommandError, "no bucket configured: pass --bucket or set archive.bucket")
	}
	return bucket, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &archiveOptions{}

	cmd := &cobra.Command{
		Use:   "export <key>",
		Short: "Write a snapshot of every message to a blob bucket",
		Long: `Export all messages as one JSON snapshot.

Examples:
  flowtree export backup.json --bucket file:///var/backups/flowtree
  FLOWTREE_ARCHIVE_BUCKET=mem:// flowtree export snap.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				bucket, err := opts.resolve(app)
				if err != nil {
					return err
				}
				n, err := archive.Export(ctx, app.Backend, bucket, args[0])
				if err != nil {
					return out.Fail(err)
				}
				res := ArchiveResult{Bucket: bucket, Key: args[0], Messages: n}
				return out.Render(res, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d messages to %s/%s\n", n, bucket, args[0])
				})
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &archiveOptions{}

	cmd := &cobra.Command{
		Use:   "import <key>",
		Short: "Restore a snapshot into an empty store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				bucket, err := opts.resolve(app)
				if err != nil {
					return err
				}
				n, err := archive.Import(ctx, app.Backend, bucket, args[0])
				switch {
				case errors.Is(err, archive.ErrStoreNotEmpty), errors.Is(err, archive.ErrNotFound):
					if writeErr := out.Error("E_ARCHIVE", err.Error(), nil); writeErr != nil {
						return writeErr
					}
					return &ExitError{Code: ExitFailure, Message: "import refused", Err: err, Reported: true}
				case err != nil:
					return out.Fail(err)
				}
				res := ArchiveResult{Bucket: bucket, Key: args[0], Messages: n}
				return out.Render(res, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d messages from %s/%s\n", n, bucket, args[0])
				})
			})
		},
	}
	opts.register(cmd)
	return cmd
}
