package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kismerge/internal/merge"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Output    string
	AllTables bool

	// RunIDs allows overriding the run identifier generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs merge.RunIDGenerator

	// Clock allows overriding the metadata timestamp source (for testing).
	Clock merge.Clock
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <captures...>",
		Short: "Merge capture databases into one",
		Long: `Merge one or more Kismet capture databases into a single output.

Inputs may be literal paths or glob patterns; they are consumed in the
order given. Devices sharing a hardware address are merged field by
field, duplicate packets are dropped, and other tables are concatenated
when --all-tables is set.

Example:
  kismerge merge captures/*.kismet -o merged.kismet
  kismerge merge a.kismet b.kismet -o out.kismet --all-tables --verbose`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "path for the merged capture (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&opts.AllTables, "all-tables", false, "carry every table, not just devices")

	return cmd
}

func runMerge(opts *MergeOptions, args []string, cmd *cobra.Command) error {
	log := configureLogging(opts.RootOptions)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sources, err := ResolveInputs(args, opts.Output, log)
	if err != nil {
		_ = formatter.Error(string(merge.ErrCodeInputResolution), err.Error(), args)
		return WrapExitError(ExitCommandError, "no input files resolved", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := merge.Run(ctx, merge.Options{
		Sources:     sources,
		Destination: opts.Output,
		AllTables:   opts.AllTables,
		RunIDs:      opts.RunIDs,
		Clock:       opts.Clock,
		Logger:      log,
	})
	if err != nil {
		_ = formatter.Error(mergeErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "merge failed", err)
	}

	return formatter.SuccessText(renderReport(report), report)
}

// mergeErrorCode extracts the failure code for the error payload.
func mergeErrorCode(err error) string {
	switch {
	case merge.IsNoData(err):
		return string(merge.ErrCodeNoData)
	case merge.IsDestinationWriteFailure(err):
		return string(merge.ErrCodeDestinationWrite)
	case merge.IsInputResolutionFailure(err):
		return string(merge.ErrCodeInputResolution)
	default:
		return "MERGE_FAILURE"
	}
}

// renderReport builds the human-readable merge summary.
func renderReport(r *merge.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Merged %d file(s) into %s\n", r.FilesProcessed, r.Destination)
	if r.FilesSkipped > 0 {
		fmt.Fprintf(&b, "Skipped %d unreadable file(s)\n", r.FilesSkipped)
	}
	fmt.Fprintf(&b, "Unique devices: %d\n", r.UniqueDevices)
	if r.OrphanDevices > 0 {
		fmt.Fprintf(&b, "Unaddressed devices kept: %d\n", r.OrphanDevices)
	}

	names := make([]string, 0, len(r.Tables))
	for name := range r.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := r.Tables[name]
		fmt.Fprintf(&b, "  %s: %d seen, %d inserted, %d merged, %d discarded",
			name, c.Seen, c.Inserted, c.Merged, c.Discarded)
		if c.Unparseable > 0 {
			fmt.Fprintf(&b, ", %d unparseable", c.Unparseable)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Run ID: %s", r.RunID)
	return b.String()
}
