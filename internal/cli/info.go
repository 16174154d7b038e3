package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kismerge/internal/kismetdb"
	"github.com/roach88/kismerge/internal/merge"
)

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
}

// CaptureInfo is the info command's payload: every table in the capture
// with its row count.
type CaptureInfo struct {
	Path    string      `json:"path"`
	Devices int64       `json:"devices"`
	Tables  []TableInfo `json:"tables"`
}

// TableInfo is one table's name and row count.
type TableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info <capture>",
		Short: "Inspect a capture database",
		Long: `List the tables of a Kismet capture database with their row counts.

Example:
  kismerge info merged.kismet`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts, args[0], cmd)
		},
	}

	return cmd
}

func runInfo(opts *InfoOptions, path string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := inspectCapture(ctx, path)
	if err != nil {
		_ = formatter.Error(string(merge.ErrCodeSourceUnreadable), err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot inspect capture", err)
	}

	return formatter.SuccessText(renderInfo(info), info)
}

// inspectCapture reads table names and row counts from one capture.
func inspectCapture(ctx context.Context, path string) (*CaptureInfo, error) {
	src, err := kismetdb.OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tables, err := src.Tables(ctx)
	if err != nil {
		return nil, err
	}

	info := &CaptureInfo{Path: path, Tables: []TableInfo{}}
	for _, table := range tables {
		n, err := src.CountRows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		info.Tables = append(info.Tables, TableInfo{Name: table, Rows: n})
		if table == merge.TableDevices {
			info.Devices = n
		}
	}

	return info, nil
}

// renderInfo builds the human-readable capture listing.
func renderInfo(info *CaptureInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", info.Path)
	fmt.Fprintf(&b, "Devices: %d\n", info.Devices)
	for _, table := range info.Tables {
		fmt.Fprintf(&b, "  %-16s %d row(s)\n", table.Name, table.Rows)
	}
	return strings.TrimRight(b.String(), "\n")
}
