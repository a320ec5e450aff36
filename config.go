package rowkey

import (
	"bytes"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const DefaultBufferSize = 1024

// Config describes one table to load and how to buffer it.
type Config struct {
	Timezone            string      `yaml:"timezone"`
	BufferSize          int         `yaml:"buffer_size"`
	Deduplicate         bool        `yaml:"deduplicate"`
	IgnoreAutoIncrement bool        `yaml:"ignore_auto_increment"`
	Compression         string      `yaml:"compression"`
	DataPath            string      `yaml:"data_path"`
	Table               TableConfig `yaml:"table"`
}

type TableConfig struct {
	Name       string         `yaml:"name"`
	PKIsHandle bool           `yaml:"pk_is_handle"`
	Columns    []ColumnConfig `yaml:"columns"`
	Indexes    []IndexConfig  `yaml:"indexes"`
}

type ColumnConfig struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Unsigned      bool   `yaml:"unsigned"`
	Length        int    `yaml:"length"`
	Decimal       int    `yaml:"decimal"`
	AutoIncrement bool   `yaml:"auto_increment"`
	PrimaryKey    bool   `yaml:"primary_key"`
}

// IndexConfig lists index columns by name; "name(10)" indexes the first 10
// characters of a string column.
type IndexConfig struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
	Primary bool     `yaml:"primary"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// ParseConfig decodes YAML, rejecting unknown keys, fills in defaults and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.BufferSize <= 0 {
		return errors.Newf("buffer_size must be positive, got %d", cfg.BufferSize)
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	if _, err := ParseCompression(cfg.Compression); err != nil {
		return err
	}
	_, err := cfg.TableInfo()
	return err
}

func (cfg *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", cfg.Timezone)
	}
	return loc, nil
}

// TableInfo builds and validates the table metadata. Temporal columns use
// the configured timezone.
func (cfg *Config) TableInfo() (*TableInfo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tc := &cfg.Table
	tbl := &TableInfo{Name: tc.Name, PKIsHandle: tc.PKIsHandle}
	for i, cc := range tc.Columns {
		tp, err := ParseMySQLType(cc.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", cc.Name)
		}
		dt := NewDataType(tp).WithUnsigned(cc.Unsigned).WithLength(cc.Length, cc.Decimal).WithLocation(loc)
		tbl.Columns = append(tbl.Columns, &ColumnInfo{
			Name:          cc.Name,
			Offset:        i,
			Type:          dt,
			AutoIncrement: cc.AutoIncrement,
			PrimaryKey:    cc.PrimaryKey,
		})
	}
	for _, ic := range tc.Indexes {
		idx := &IndexInfo{Name: ic.Name, Unique: ic.Unique, Primary: ic.Primary}
		for _, def := range ic.Columns {
			name, length, err := parseIndexColumn(def)
			if err != nil {
				return nil, errors.Wrapf(err, "index %s", ic.Name)
			}
			col := tbl.Column(name)
			if col == nil {
				return nil, errors.Newf("index %s: unknown column %s", ic.Name, name)
			}
			idx.Columns = append(idx.Columns, IndexColumn{Name: col.Name, Offset: col.Offset, Length: length})
		}
		tbl.Indexes = append(tbl.Indexes, idx)
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func parseIndexColumn(def string) (string, int, error) {
	def = strings.TrimSpace(def)
	name, rest, ok := strings.Cut(def, "(")
	if !ok {
		return def, 0, nil
	}
	lenStr, ok := strings.CutSuffix(rest, ")")
	if !ok {
		return "", 0, errors.Newf("invalid index column %q", def)
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n <= 0 {
		return "", 0, errors.Newf("invalid prefix length in index column %q", def)
	}
	return strings.TrimSpace(name), n, nil
}

// NewRowBuffer returns a buffer sized and deduplicating as configured.
func (cfg *Config) NewRowBuffer(tbl *TableInfo) *RowBuffer {
	if cfg.Deduplicate {
		return NewDedupRowBuffer(tbl, cfg.IgnoreAutoIncrement, cfg.BufferSize)
	}
	return NewRowBuffer(cfg.BufferSize)
}

// StoreOptions returns the options for opening the configured store.
func (cfg *Config) StoreOptions(logger *slog.Logger) Options {
	compression, _ := ParseCompression(cfg.Compression)
	return Options{Logger: logger, Compression: compression}
}

// OpenStore opens the Bolt store at data_path, or an in-memory store when
// data_path is empty.
func (cfg *Config) OpenStore(logger *slog.Logger) (*Store, error) {
	opt := cfg.StoreOptions(logger)
	if cfg.DataPath == "" {
		return OpenMemory(opt), nil
	}
	return Open(cfg.DataPath, opt)
}
