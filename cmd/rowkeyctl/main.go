// Command rowkeyctl inspects row handles and loads JSON rows into a staging
// store.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/andreyvit/rowkey"
)

var (
	verbose    bool
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rowkeyctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rowkeyctl",
		Short:         "Inspect row handles and stage rows for bulk writes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	root.AddCommand(newDecodeCmd(), newNextCmd(), newLoadCmd(), newScanCmd())
	return root
}

func loadConfig() (*rowkey.Config, *rowkey.TableInfo, error) {
	if configPath == "" {
		return nil, nil, errors.New("--config is required")
	}
	cfg, err := rowkey.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := cfg.TableInfo()
	if err != nil {
		return nil, nil, err
	}
	return cfg, tbl, nil
}

func parseHandleArg(s string) (rowkey.Handle, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return rowkey.Handle{}, errors.Wrapf(err, "invalid hex %q", s)
	}
	return rowkey.NewCommonHandleFromBytes(raw)
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX",
		Short: "Split a common handle into columns and decode them",
		Long:  "Decodes every column by its flag, or by the primary-key column types when --config is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHandleArg(args[0])
			if err != nil {
				return err
			}
			var values []any
			if configPath != "" {
				_, tbl, err := loadConfig()
				if err != nil {
					return err
				}
				pk := tbl.PrimaryIndex()
				if pk == nil {
					return errors.Newf("table %s has no common-handle primary key", tbl.Name)
				}
				types := make([]rowkey.DataType, len(pk.Columns))
				for i, ic := range pk.Columns {
					types[i] = tbl.Columns[ic.Offset].Type
				}
				values, err = h.DecodeTyped(types)
				if err != nil {
					return err
				}
			} else {
				values, err = h.Data()
				if err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "handle %s (%d bytes, %d columns)\n", hex.EncodeToString(h.Encoded()), h.Len(), h.NumCols())
			for i, v := range values {
				col, err := h.EncodedCol(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %d: %-40s %v\n", i, hex.EncodeToString(col), v)
			}
			return nil
		},
	}
}

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next HEX",
		Short: "Print the exclusive upper scan bound of a handle prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHandleArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(h.Next().Encoded()))
			return nil
		},
	}
}

type loadStats struct {
	Read       int `json:"read"`
	Admitted   int `json:"admitted"`
	Duplicates int `json:"duplicates"`
	Written    int `json:"written"`
	Flushes    int `json:"flushes"`
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load ROWS.jsonl",
		Short: "Buffer JSON rows, deduplicate them and flush them into the store",
		Long:  "Each input line is a JSON array of column values in table order. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tbl, err := loadConfig()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			store, err := cfg.OpenStore(slog.Default())
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := load(r, tbl, cfg.NewRowBuffer(tbl), store)
			if err != nil {
				return err
			}
			slog.Info("loaded", "table", tbl.Name, "read", stats.Read, "admitted", stats.Admitted, "duplicates", stats.Duplicates, "written", stats.Written)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
}

func load(r io.Reader, tbl *rowkey.TableInfo, buf *rowkey.RowBuffer, store *rowkey.Store) (loadStats, error) {
	var stats loadStats
	flush := func() error {
		if buf.Size() == 0 {
			return nil
		}
		n, err := store.Flush(tbl, buf)
		if err != nil {
			return err
		}
		stats.Written += n
		stats.Flushes++
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		row, err := parseRow(line, tbl)
		if err != nil {
			return stats, errors.Wrapf(err, "line %d", lineNo)
		}
		stats.Read++
		if buf.IsFull() {
			if err := flush(); err != nil {
				return stats, err
			}
		}
		ok, err := buf.Add(row)
		if err != nil {
			return stats, errors.Wrapf(err, "line %d", lineNo)
		}
		if ok {
			stats.Admitted++
		} else {
			stats.Duplicates++
			slog.Debug("duplicate row", "line", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, err
	}
	return stats, flush()
}

func parseRow(line []byte, tbl *rowkey.TableInfo) (rowkey.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) > len(tbl.Columns) {
		return nil, errors.Newf("got %d values, table %s has %d columns", len(raw), tbl.Name, len(tbl.Columns))
	}
	row := make(rowkey.Values, len(tbl.Columns))
	for i, v := range raw {
		col := tbl.Columns[i]
		cv, err := col.Type.Convert(v)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name)
		}
		row[i] = cv
	}
	return row, nil
}

func newScanCmd() *cobra.Command {
	var limit int
	var prefix string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print stored rows in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tbl, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DataPath == "" {
				return errors.New("scan needs data_path in the config")
			}
			store, err := cfg.OpenStore(slog.Default())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			n := 0
			var encErr error
			visit := func(h rowkey.Handle, row rowkey.Values) bool {
				line, err := json.Marshal(row)
				if err != nil {
					encErr = err
					return false
				}
				fmt.Fprintf(out, "%s\t%s\n", h, line)
				n++
				return limit <= 0 || n < limit
			}
			if prefix != "" {
				var h rowkey.Handle
				h, err = parseHandleArg(prefix)
				if err != nil {
					return err
				}
				err = store.ScanPrefix(tbl, h, visit)
			} else {
				err = store.Scan(tbl, nil, nil, visit)
			}
			if err != nil {
				return err
			}
			return encErr
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many rows")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only rows whose key starts with this hex handle")
	return cmd
}
