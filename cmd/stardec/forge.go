package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stardec/stardec/dataforge"
)

// defaultForgePattern finds the schema blob inside an archive when no
// explicit entry name is given.
const defaultForgePattern = `\.dcb$`

// loadForge parses a schema blob from a plain file or from inside an
// archive, distinguished by the ZIP signature.
func loadForge(ctx context.Context, path, entryName string) (*dataforge.DataForge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(raw, []byte("PK")) {
		ar, err := openArchive(ctx, path)
		if err != nil {
			return nil, err
		}
		defer ar.Close()

		if entryName == "" {
			re, err := compilePattern(defaultForgePattern)
			if err != nil {
				return nil, err
			}
			matches := ar.FindFiles(re, 1)
			if len(matches) == 0 {
				return nil, errors.New("archive contains no schema blob; use --entry")
			}
			entryName = matches[0].Name
			slog.Debug("schema blob located", "entry", entryName)
		}
		raw, err = ar.ReadFileByName(ctx, entryName)
		if err != nil {
			return nil, err
		}
	}

	df, err := dataforge.Parse(raw, dataforge.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	for _, warning := range df.Warnings() {
		slog.Warn("schema blob inconsistent", "detail", warning)
	}
	return df, nil
}

func newRecordsCmd() *cobra.Command {
	var (
		entryName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "records <archive-or-blob> [pattern]",
		Short: "Search record definitions by name or file path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadForge(cmd.Context(), args[0], entryName)
			if err != nil {
				return err
			}

			pattern := ".*"
			if len(args) == 2 {
				pattern = args[1]
			}
			re, err := compilePattern(pattern)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, info := range df.SearchRecords(re, limit) {
				fmt.Fprintf(out, "%s  %-24s  %-32s  %s\n",
					info.ID, info.StructType, info.Name, info.FileName)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entryName, "entry", "", "schema blob entry name inside an archive")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to list (0 = all)")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var (
		entryName string
		maxDepth  int
	)

	cmd := &cobra.Command{
		Use:   "record <archive-or-blob> <guid|index>",
		Short: "Deserialize one record and dump it as indented text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadForge(cmd.Context(), args[0], entryName)
			if err != nil {
				return err
			}

			index, err := resolveRecord(df, args[1])
			if err != nil {
				return err
			}

			value, err := df.ReadRecord(index, maxDepth)
			if err != nil {
				return err
			}
			return value.Dump(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&entryName, "entry", "", "schema blob entry name inside an archive")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 3, "strong pointer resolution depth")
	return cmd
}

// resolveRecord maps a GUID or table index to a record index.
func resolveRecord(df *dataforge.DataForge, arg string) (int, error) {
	if id, err := uuid.Parse(arg); err == nil {
		index, ok := df.RecordByGUID(id)
		if !ok {
			return 0, fmt.Errorf("no record with id %s", id)
		}
		return index, nil
	}
	index, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a GUID nor an index", arg)
	}
	return index, nil
}
