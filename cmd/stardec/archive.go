package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/stardec/stardec/cryxml"
	"github.com/stardec/stardec/p4k"
)

// openArchive opens an archive and loads its full entry index, reporting
// progress to the debug log.
func openArchive(ctx context.Context, path string) (*p4k.Archive, error) {
	ar, err := p4k.Open(path, p4k.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = ar.LoadAllEntries(ctx, func(p p4k.Progress) {
		slog.Debug("loading entries", "loaded", p.EntriesLoaded, "total", p.EntriesTotal)
	})
	if err != nil {
		ar.Close()
		return nil, err
	}
	slog.Debug("entry index loaded",
		"entries", len(ar.Entries()), "elapsed", time.Since(start).Round(time.Millisecond))
	return ar, nil
}

// compilePattern compiles a user-supplied filter as a case-insensitive
// regular expression.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

func newLsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ls <archive> [pattern]",
		Short: "List archive entries, optionally filtered by a pattern",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer ar.Close()

			var entries []*p4k.Entry
			if len(args) == 2 {
				re, err := compilePattern(args[1])
				if err != nil {
					return err
				}
				entries = ar.FindFiles(re, limit)
			} else {
				entries = ar.Entries()
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%12d  %-10s  %s\n", e.UncompressedSize, e.Method, e.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to list (0 = all)")
	return cmd
}

func newCatCmd() *cobra.Command {
	var asXML bool

	cmd := &cobra.Command{
		Use:   "cat <archive> <name>",
		Short: "Write one entry's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer ar.Close()

			data, err := ar.ReadFileByName(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			if asXML {
				return writeMarkup(cmd, data)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asXML, "xml", false, "decode binary markup to XML text")
	return cmd
}

// writeMarkup renders binary markup as text; plain-text input passes
// through unchanged.
func writeMarkup(cmd *cobra.Command, data []byte) error {
	node, err := cryxml.Parse(data, cryxml.WithLogger(slog.Default()))
	if errors.Is(err, cryxml.ErrPlainXML) {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err != nil {
		return err
	}
	return node.WriteXML(cmd.OutOrStdout())
}

func newExtractCmd() *cobra.Command {
	var (
		outDir      string
		workers     int
		overwrite   bool
		profilePath string
	)

	cmd := &cobra.Command{
		Use:   "extract <archive> [pattern]",
		Short: "Extract matching entries into a directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args[1:]
			if profilePath != "" {
				profile, err := loadProfile(profilePath)
				if err != nil {
					return err
				}
				patterns = append(patterns, profile.Patterns...)
				if !cmd.Flags().Changed("out") && profile.Out != "" {
					outDir = profile.Out
				}
				if !cmd.Flags().Changed("workers") && profile.Workers > 0 {
					workers = profile.Workers
				}
				if !cmd.Flags().Changed("overwrite") {
					overwrite = profile.Overwrite
				}
			}

			ar, err := openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer ar.Close()

			entries, err := selectEntries(ar, patterns)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no entries match")
			}

			results, err := ar.ExtractBatch(cmd.Context(), entries, outDir,
				p4k.ExtractWithWorkers(workers),
				p4k.ExtractWithOverwrite(overwrite))
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					slog.Warn("extraction failed", "entry", res.Entry.Name, "error", res.Err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted %d of %d entries to %s\n",
				len(results)-failed, len(results), outDir)
			if failed > 0 {
				return fmt.Errorf("%d entries failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "destination directory")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel extraction workers")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing files")
	cmd.Flags().StringVar(&profilePath, "profile", "", "YAML extraction profile")
	return cmd
}

// selectEntries resolves patterns to a deduplicated entry list; with no
// patterns every file is selected.
func selectEntries(ar *p4k.Archive, patterns []string) ([]*p4k.Entry, error) {
	if len(patterns) == 0 {
		var all []*p4k.Entry
		for _, e := range ar.Entries() {
			if !e.IsDirectory {
				all = append(all, e)
			}
		}
		return all, nil
	}

	seen := make(map[*p4k.Entry]struct{})
	var entries []*p4k.Entry
	for _, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		for _, e := range ar.FindFiles(re, 0) {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <archive>",
		Short: "Show archive composition statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer ar.Close()

			stats, err := ar.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries:       %d (%d files)\n", stats.TotalEntries, stats.TotalFiles)
			fmt.Fprintf(out, "uncompressed:  %d bytes\n", stats.TotalUncompressed)
			fmt.Fprintf(out, "compressed:    %d bytes (ratio %.3f)\n",
				stats.TotalCompressed, stats.CompressionRatio)
			fmt.Fprintln(out, "top directories:")
			for _, nc := range stats.TopDirectories {
				fmt.Fprintf(out, "  %6d  %s\n", nc.Count, nc.Name)
			}
			fmt.Fprintln(out, "top extensions:")
			for _, nc := range stats.TopExtensions {
				fmt.Fprintf(out, "  %6d  %s\n", nc.Count, nc.Name)
			}
			return nil
		},
	}
}
