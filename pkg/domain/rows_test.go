package domain

import (
	"slices"
	"testing"
)

func mergedFixture() RowRecord {
	return RowRecord{
		ID:     "r1",
		Shared: SharedFields{Region: "north"},
		SubRows: []SubRowFields{
			{Tasks: "first", Executors: []string{"a"}},
			{Tasks: "second", Comment: "c2"},
			{},
		},
	}
}

func TestSubRowIncludesSharedRegion(t *testing.T) {
	rec := mergedFixture()
	for k := 0; k < rec.MergedCount(); k++ {
		if got := rec.SubRow(k).Region; got != "north" {
			t.Fatalf("sub-row %d region = %q", k, got)
		}
	}
	if got := rec.SubRow(1).Tasks; got != "second" {
		t.Fatalf("expected extra tasks, got %q", got)
	}
	empty := rec.SubRow(2)
	if empty.Tasks != "" || empty.Executors != nil || empty.Comment != "" {
		t.Fatalf("expected empty extra, got %+v", empty)
	}
	if got := rec.SubRow(7); got.Region != "north" || got.Tasks != "" {
		t.Fatalf("out of range sub-row should default to empty fields, got %+v", got)
	}
}

func TestSubRowReturnsCopy(t *testing.T) {
	rec := mergedFixture()
	view := rec.SubRow(0)
	view.Executors[0] = "mutated"
	if rec.SubRows[0].Executors[0] != "a" {
		t.Fatalf("SubRow leaked internal slice")
	}
}

func TestSetSubRowFieldRegionIsGroupLevel(t *testing.T) {
	rec := mergedFixture()
	if err := rec.SetSubRowField(2, FieldRegion, "south"); err != nil {
		t.Fatalf("set region: %v", err)
	}
	if rec.Shared.Region != "south" {
		t.Fatalf("region not written to shared field")
	}
	for k := 0; k < rec.MergedCount(); k++ {
		if rec.SubRow(k).Region != "south" {
			t.Fatalf("sub-row %d did not observe new region", k)
		}
	}
}

func TestSetSubRowFieldRoutesByIndex(t *testing.T) {
	rec := mergedFixture()
	if err := rec.SetSubRowField(0, FieldTasks, "p"); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if err := rec.SetSubRowField(2, FieldExecutors, []string{"x", "y"}); err != nil {
		t.Fatalf("set extra: %v", err)
	}
	if rec.SubRows[0].Tasks != "p" {
		t.Fatalf("primary tasks = %q", rec.SubRows[0].Tasks)
	}
	if !slices.Equal(rec.SubRows[2].Executors, []string{"x", "y"}) {
		t.Fatalf("extra executors = %v", rec.SubRows[2].Executors)
	}
	if rec.SubRows[1].Tasks != "second" {
		t.Fatalf("untouched sub-row changed")
	}
}

func TestSetSubRowFieldRejectsBadInput(t *testing.T) {
	rec := NewRowRecord("r")
	if err := rec.SetSubRowField(1, FieldTasks, "x"); !IsValidation(err) {
		t.Fatalf("expected validation error for index past group, got %v", err)
	}
	if err := rec.SetSubRowField(0, FieldTasks, 5); !IsValidation(err) {
		t.Fatalf("expected validation error for wrong type, got %v", err)
	}
	if err := rec.SetSubRowField(0, FieldExecutors, "solo"); !IsValidation(err) {
		t.Fatalf("expected validation error for executors string, got %v", err)
	}
	if rec.MergedCount() != 1 || rec.SubRows[0].Tasks != "" {
		t.Fatalf("failed writes mutated record: %+v", rec)
	}
}

func TestUnmergedRecordHasNoExtras(t *testing.T) {
	rec := NewRowRecord("r")
	if rec.MergedCount() != 1 || len(rec.SubRows) != 1 || rec.IsMerged() {
		t.Fatalf("new record should be unmerged with a single sub-row: %+v", rec)
	}
	var zero RowRecord
	if zero.MergedCount() != 1 {
		t.Fatalf("zero record must still count one physical row")
	}
	zero.Normalize()
	if len(zero.SubRows) != 1 {
		t.Fatalf("normalize should add the primary sub-row")
	}
}

func TestCloneRowsIsDeep(t *testing.T) {
	rows := []RowRecord{mergedFixture()}
	cp := CloneRows(rows)
	cp[0].SubRows[0].Executors[0] = "z"
	cp[0].SubRows[1].Tasks = "changed"
	if rows[0].SubRows[0].Executors[0] != "a" || rows[0].SubRows[1].Tasks != "second" {
		t.Fatalf("clone shares state with original")
	}
	if PhysicalRowCount(rows) != 3 {
		t.Fatalf("physical row count = %d", PhysicalRowCount(rows))
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField("executor"); err != nil || f != FieldExecutors {
		t.Fatalf("legacy executor alias: %v %v", f, err)
	}
	if f, err := ParseField("dueDate"); err != nil || f != FieldDueDate {
		t.Fatalf("dueDate: %v %v", f, err)
	}
	if _, err := ParseField("bogus"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
