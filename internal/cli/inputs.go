package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/kismerge/internal/merge"
)

// ResolveInputs expands the command-line input arguments into concrete
// file paths.
//
// Each argument is tried as a glob pattern first; when the pattern matches
// nothing but names an existing file, the literal path is used. Arguments
// that resolve to nothing produce a warning, not an error, as long as the
// overall list is non-empty. The result preserves argument order, drops
// duplicates on first occurrence, and never includes the output path, so
// a previous run's destination sitting next to the inputs cannot be fed
// back into itself.
func ResolveInputs(args []string, output string, log *slog.Logger) ([]string, error) {
	outClean := filepath.Clean(output)

	var resolved []string
	seen := make(map[string]bool)

	add := func(path string) {
		clean := filepath.Clean(path)
		if clean == outClean {
			log.Debug("excluding output path from inputs", "path", path)
			return
		}
		if seen[clean] {
			return
		}
		seen[clean] = true
		resolved = append(resolved, clean)
	}

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			// Malformed pattern: fall back to the literal path check below
			matches = nil
		}

		if len(matches) == 0 {
			if _, statErr := os.Stat(arg); statErr == nil {
				add(arg)
				continue
			}
			log.Warn("input matched no files", "pattern", arg)
			continue
		}

		for _, m := range matches {
			add(m)
		}
	}

	if len(resolved) == 0 {
		return nil, merge.NewInputResolutionError()
	}
	return resolved, nil
}
