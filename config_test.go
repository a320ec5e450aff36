package rowkey

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const ordersYAML = `
timezone: UTC
buffer_size: 2
deduplicate: true
compression: snappy
table:
  name: orders
  columns:
    - {name: id, type: bigint, auto_increment: true}
    - {name: region, type: varchar, length: 32, primary_key: true}
    - {name: code, type: char, length: 8, primary_key: true}
    - {name: total, type: decimal, length: 12, decimal: 2}
    - {name: placed, type: datetime}
  indexes:
    - {name: PRIMARY, columns: ["region(2)", code], primary: true}
    - {name: id, columns: [id], unique: true}
`

func TestParseConfig(t *testing.T) {
	cfg := must(ParseConfig([]byte(ordersYAML)))
	deepEqual(t, cfg.BufferSize, 2)
	deepEqual(t, cfg.Deduplicate, true)
	deepEqual(t, cfg.StoreOptions(nil).Compression, SnappyCompression)

	tbl := must(cfg.TableInfo())
	deepEqual(t, tbl.Name, "orders")
	deepEqual(t, len(tbl.Columns), 5)
	deepEqual(t, tbl.Columns[3].Type.String(), "decimal(12,2)")
	deepEqual(t, tbl.Columns[4].Type.Location().String(), "UTC")
	deepEqual(t, tbl.PrimaryIndex().Columns, []IndexColumn{{Name: "region", Offset: 1, Length: 2}, {Name: "code", Offset: 2}})
	deepEqual(t, tbl.UniqueProjections(false), [][]int{{1, 2}, {0}})

	buf := cfg.NewRowBuffer(tbl)
	deepEqual(t, buf.Capacity(), 2)
	deepEqual(t, buf.Projections(), [][]int{{1, 2}, {0}})

	cfg.IgnoreAutoIncrement = true
	deepEqual(t, cfg.NewRowBuffer(tbl).Projections(), [][]int{{1, 2}})
	cfg.Deduplicate = false
	deepEqual(t, cfg.NewRowBuffer(tbl).Projections(), [][]int{})
}

func TestParseConfigDefaults(t *testing.T) {
	cfg := must(ParseConfig([]byte("table: {name: t, columns: [{name: a, type: int}]}")))
	deepEqual(t, cfg.BufferSize, DefaultBufferSize)
	deepEqual(t, cfg.Timezone, "Local")
	isTrue(t, must(cfg.Location()) == time.Local, "default location is not Local")
	deepEqual(t, cfg.StoreOptions(nil).Compression, NoCompression)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		yaml     string
		expected string
	}{
		{"bogus: 1\ntable: {name: t, columns: [{name: a, type: int}]}", "bogus"},
		{"buffer_size: -1\ntable: {name: t, columns: [{name: a, type: int}]}", "buffer_size must be positive"},
		{"timezone: Mars/Olympus\ntable: {name: t, columns: [{name: a, type: int}]}", "invalid timezone"},
		{"compression: lz4\ntable: {name: t, columns: [{name: a, type: int}]}", "unknown compression"},
		{"table: {name: t, columns: [{name: a, type: geometry}]}", "unknown column type"},
		{"table: {name: t, columns: [{name: a, type: int}], indexes: [{name: i, columns: [b]}]}", "unknown column b"},
		{"table: {name: t, columns: [{name: a, type: varchar}], indexes: [{name: i, columns: [\"a(0)\"]}]}", "invalid prefix length"},
		{"table: {name: t, columns: [{name: a, type: varchar}], indexes: [{name: i, columns: [\"a(3\"]}]}", "invalid index column"},
		{"table: {name: t}", "no columns"},
	}
	for _, test := range tests {
		_, err := ParseConfig([]byte(test.yaml))
		if err == nil {
			t.Errorf("** ParseConfig(%q) succeeded", test.yaml)
		} else if !strings.Contains(err.Error(), test.expected) {
			t.Errorf("** ParseConfig(%q) = %q, wanted %q", test.yaml, err.Error(), test.expected)
		}
	}
}

func TestParseIndexColumn(t *testing.T) {
	tests := []struct {
		input  string
		name   string
		length int
	}{
		{"a", "a", 0},
		{" a ", "a", 0},
		{"a(10)", "a", 10},
		{"a (3)", "a", 3},
	}
	for _, test := range tests {
		name, length, err := parseIndexColumn(test.input)
		if err != nil || name != test.name || length != test.length {
			t.Errorf("** parseIndexColumn(%q) = %q, %d, %v, wanted %q, %d", test.input, name, length, err, test.name, test.length)
		}
	}
}

func TestLoadConfigAndOpenStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rowkey.yaml")
	yaml := ordersYAML + "data_path: " + filepath.Join(dir, "rows.db") + "\n"
	ensure(os.WriteFile(path, []byte(yaml), 0o644))

	cfg := must(LoadConfig(path))
	tbl := must(cfg.TableInfo())
	s := must(cfg.OpenStore(slog.Default()))
	defer s.Close()

	buf := cfg.NewRowBuffer(tbl)
	must(buf.Add(Values{1, "us-east", "A1", "12.50", "2024-05-01 10:00:00"}))
	must(buf.Add(Values{2, "us-west", "A1", "1.00", nil}))
	deepEqual(t, must(s.Flush(tbl, buf)), 2)
	// both regions truncate to "us", so the second row replaced the first
	deepEqual(t, must(s.Count(tbl)), 1)

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("** LoadConfig(missing) succeeded")
	}
}

func TestOpenStoreInMemory(t *testing.T) {
	cfg := must(ParseConfig([]byte("table: {name: t, columns: [{name: a, type: int}]}")))
	s := must(cfg.OpenStore(nil))
	defer s.Close()
	deepEqual(t, must(s.Count(must(cfg.TableInfo()))), 0)
}
