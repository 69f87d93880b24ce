package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/internal/export"
	"github.com/rpattn/enghistory/pkg/history"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	formatXLSX  = "xlsx"
)

type diffOptions struct {
	ignore []string
	format string
	out    string
}

func diffCmd() *cobra.Command {
	opts := &diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff <file>",
		Short: "Compute the history of a list of snapshots",
		Long: `Read a JSON or YAML array of entity snapshots, ordered oldest first,
and print the resulting history record. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.ignore, "ignore", "i", nil, "Additional fields to ignore")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatJSON, "Output format (json, table, xlsx)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write output to a file instead of stdout")

	return cmd
}

func runDiff(cmd *cobra.Command, path string, opts *diffOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case formatJSON, formatTable:
	case formatXLSX:
		if opts.out == "" {
			return fmt.Errorf("--out is required for xlsx output")
		}
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	snapshots, err := readSnapshots(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	record := history.CreateHistory(snapshots, opts.ignore...)

	w := cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case formatTable:
		return writeTable(w, record)
	case formatXLSX:
		return export.WriteHistoryWorkbook(w, record)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
}

func readSnapshots(stdin io.Reader, path string) ([]history.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return decodeSnapshots(data, filepath.Ext(path))
}

// decodeSnapshots parses YAML for .yaml/.yml files and JSON otherwise.
func decodeSnapshots(data []byte, ext string) ([]history.Snapshot, error) {
	var raw []map[string]any
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid yaml snapshots: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid json snapshots: %w", err)
		}
	}

	snapshots := make([]history.Snapshot, len(raw))
	for i, s := range raw {
		if s != nil {
			snapshots[i] = history.Snapshot(s)
		}
	}
	return snapshots, nil
}

func writeTable(w io.Writer, record *history.Record) error {
	rows := domain.FlattenHistory(record)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tUPDATED AT\tVALUE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Path, row.UpdatedAt, row.Value)
	}
	return tw.Flush()
}
