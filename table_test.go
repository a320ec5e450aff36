package rowkey

import (
	"strings"
	"testing"
	"time"
)

func usersTable() *TableInfo {
	return &TableInfo{
		Name: "users",
		Columns: []*ColumnInfo{
			{Name: "id", Offset: 0, Type: bigintType, AutoIncrement: true, PrimaryKey: true},
			{Name: "email", Offset: 1, Type: varcharType},
			{Name: "name", Offset: 2, Type: varcharType},
		},
		Indexes: []*IndexInfo{
			{Name: "email", Columns: []IndexColumn{{Name: "email", Offset: 1}}, Unique: true},
			{Name: "name", Columns: []IndexColumn{{Name: "name", Offset: 2}}},
		},
		PKIsHandle: true,
	}
}

func eventsTable(loc *time.Location) *TableInfo {
	return &TableInfo{
		Name: "events",
		Columns: []*ColumnInfo{
			{Name: "source", Offset: 0, Type: varcharType, PrimaryKey: true},
			{Name: "day", Offset: 1, Type: NewDataType(TypeDate).WithLocation(loc), PrimaryKey: true},
			{Name: "at", Offset: 2, Type: NewDataType(TypeTimestamp)},
			{Name: "seq", Offset: 3, Type: bigintType, AutoIncrement: true},
			{Name: "payload", Offset: 4, Type: NewDataType(TypeBlob)},
		},
		Indexes: []*IndexInfo{
			{Name: "PRIMARY", Columns: []IndexColumn{{Name: "source", Offset: 0, Length: 4}, {Name: "day", Offset: 1}}, Unique: true, Primary: true},
			{Name: "at_seq", Columns: []IndexColumn{{Name: "at", Offset: 2}, {Name: "seq", Offset: 3}}, Unique: true},
		},
	}
}

func logTable() *TableInfo {
	return &TableInfo{
		Name: "log",
		Columns: []*ColumnInfo{
			{Name: "msg", Offset: 0, Type: varcharType},
		},
	}
}

func TestTableValidate(t *testing.T) {
	for _, tbl := range []*TableInfo{usersTable(), eventsTable(time.UTC), logTable()} {
		if err := tbl.Validate(); err != nil {
			t.Errorf("** %s.Validate() failed: %v", tbl.Name, err)
		}
	}

	tests := []struct {
		mutate   func(tbl *TableInfo)
		expected string
	}{
		{func(tbl *TableInfo) { tbl.Name = "" }, "no name"},
		{func(tbl *TableInfo) { tbl.Columns = nil; tbl.Indexes = nil; tbl.PKIsHandle = false }, "no columns"},
		{func(tbl *TableInfo) { tbl.Columns[1].Offset = 5 }, "has offset 5"},
		{func(tbl *TableInfo) { tbl.Columns[2].Name = "EMAIL" }, "duplicate column"},
		{func(tbl *TableInfo) { tbl.Columns[1].AutoIncrement = true }, "2 auto-increment columns"},
		{func(tbl *TableInfo) { tbl.Indexes[0].Columns[0].Name = "nope" }, "unknown column nope"},
		{func(tbl *TableInfo) { tbl.Indexes[1].Columns = nil }, "has no columns"},
		{func(tbl *TableInfo) { tbl.Indexes[0].Primary = true }, "lists its primary key"},
		{func(tbl *TableInfo) { tbl.Columns[1].PrimaryKey = true }, "exactly one integer primary key"},
		{func(tbl *TableInfo) { tbl.Columns[0].Type = varcharType }, "exactly one integer primary key"},
	}
	for i, test := range tests {
		tbl := usersTable()
		test.mutate(tbl)
		err := tbl.Validate()
		if err == nil {
			t.Errorf("** case %d: Validate() succeeded", i)
		} else if !strings.Contains(err.Error(), test.expected) {
			t.Errorf("** case %d: Validate() = %q, wanted %q", i, err.Error(), test.expected)
		}
	}

	tbl := eventsTable(time.UTC)
	tbl.Indexes[1].Columns[0].Length = 3
	if err := tbl.Validate(); err == nil || !strings.Contains(err.Error(), "prefix length on non-string") {
		t.Errorf("** prefix on timestamp: Validate() = %v", err)
	}
	tbl = eventsTable(time.UTC)
	tbl.Indexes[1].Primary = true
	if err := tbl.Validate(); err == nil || !strings.Contains(err.Error(), "2 primary keys") {
		t.Errorf("** two primaries: Validate() = %v", err)
	}
}

func TestTableLookups(t *testing.T) {
	tbl := usersTable()
	deepEqual(t, tbl.Column("EMAIL"), tbl.Columns[1])
	isTrue(t, tbl.Column("missing") == nil, "Column(missing) != nil")
	deepEqual(t, tbl.AutoIncrementColumn(), tbl.Columns[0])
	deepEqual(t, tbl.PKHandleColumn(), tbl.Columns[0])
	isTrue(t, tbl.PrimaryIndex() == nil, "PrimaryIndex of pk_is_handle table != nil")

	events := eventsTable(time.UTC)
	isTrue(t, events.PKHandleColumn() == nil, "PKHandleColumn of events != nil")
	deepEqual(t, events.PrimaryIndex(), events.Indexes[0])
	deepEqual(t, events.PrimaryIndex().Offsets(), []int{0, 1})
	isTrue(t, logTable().AutoIncrementColumn() == nil, "log has an auto-increment column")
}

func TestUniqueIndexes(t *testing.T) {
	names := func(indexes []*IndexInfo) []string {
		result := make([]string, len(indexes))
		for i, idx := range indexes {
			result[i] = idx.Name
		}
		return result
	}

	tbl := usersTable()
	deepEqual(t, names(tbl.UniqueIndexes(false)), []string{"email", "PRIMARY"})
	deepEqual(t, names(tbl.UniqueIndexes(true)), []string{"email"})
	deepEqual(t, tbl.UniqueProjections(false), [][]int{{1}, {0}})

	events := eventsTable(time.UTC)
	deepEqual(t, events.UniqueProjections(false), [][]int{{0, 1}, {2, 3}})
	deepEqual(t, events.UniqueProjections(true), [][]int{{0, 1}})

	deepEqual(t, logTable().UniqueProjections(false), [][]int{})
}

func TestHandleOfIntHandle(t *testing.T) {
	tbl := usersTable()
	h, ok, err := tbl.HandleOf(Values{int64(17), "a@example.com", "Ann"})
	if err != nil || !ok {
		t.Fatalf("** HandleOf failed: %v, %v", ok, err)
	}
	deepEqual(t, must(h.IntValue()), int64(17))

	if _, _, err := tbl.HandleOf(Values{nil, "a@example.com"}); err == nil {
		t.Errorf("** HandleOf with NULL id succeeded")
	}
	if _, _, err := tbl.HandleOf(Values{"x"}); err == nil {
		t.Errorf("** HandleOf with string id succeeded")
	}
}

func TestHandleOfCommonHandle(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	tbl := eventsTable(loc)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	h1, ok, err := tbl.HandleOf(Values{"sensor-1", day, int64(0), int64(1), []byte{1}})
	if err != nil || !ok {
		t.Fatalf("** HandleOf failed: %v, %v", ok, err)
	}
	types := []DataType{tbl.Columns[0].Type, tbl.Columns[1].Type}
	data := must(h1.DecodeTyped(types))
	deepEqual(t, data[0], any("sens"))
	isTrue(t, data[1].(time.Time).Equal(day), "day = %v, wanted %v", data[1], day)

	// epoch days give the same key as the time
	days := day.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, loc)) / (24 * time.Hour)
	h2, _, err := tbl.HandleOf(Values{"sensor-2", int64(days)})
	if err != nil {
		t.Fatalf("** HandleOf by days failed: %v", err)
	}
	isTrue(t, h1.Equal(h2), "%s != %s", h1, h2)

	if _, _, err := tbl.HandleOf(Values{nil, day}); err == nil {
		t.Errorf("** HandleOf with NULL source succeeded")
	}
}

func TestHandleOfTimestampKey(t *testing.T) {
	tbl := &TableInfo{
		Name: "ticks",
		Columns: []*ColumnInfo{
			{Name: "at", Offset: 0, Type: NewDataType(TypeTimestamp), PrimaryKey: true},
		},
		Indexes: []*IndexInfo{
			{Name: "PRIMARY", Columns: []IndexColumn{{Name: "at", Offset: 0}}, Unique: true, Primary: true},
		},
	}
	at := time.Date(2020, 5, 6, 7, 8, 9, 987654321, time.UTC)
	h1 := must2(tbl.HandleOf(Values{at}))
	h2 := must2(tbl.HandleOf(Values{at.UnixMilli()}))
	h3 := must2(tbl.HandleOf(Values{"2020-05-06T07:08:09Z"}))
	isTrue(t, h1.Equal(h2), "%s != %s", h1, h2)
	isTrue(t, h1.Equal(h3), "%s != %s", h1, h3)

	data := must(h1.DecodeTyped([]DataType{tbl.Columns[0].Type}))
	isTrue(t, data[0].(time.Time).Equal(at.Truncate(time.Second)), "at = %v", data[0])
}

func TestHandleOfKeyless(t *testing.T) {
	_, ok, err := logTable().HandleOf(Values{"hello"})
	isTrue(t, err == nil && !ok, "HandleOf on keyless table = %v, %v", ok, err)
}

func must2(h Handle, ok bool, err error) Handle {
	if err != nil {
		panic(err)
	}
	if !ok {
		panic("no handle")
	}
	return h
}
