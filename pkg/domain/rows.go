package domain

import (
	"fmt"
	"slices"
)

// Field names one editable column of a protocol row.
type Field string

const (
	FieldRegion           Field = "region"
	FieldTasks            Field = "tasks"
	FieldExecutors        Field = "executors"
	FieldDueDate          Field = "dueDate"
	FieldCompletionStatus Field = "completionStatus"
	FieldResult           Field = "result"
	FieldSignature        Field = "signature"
	FieldComment          Field = "comment"
)

// SubRowFieldOrder lists the per-sub-row fields in column order.
var SubRowFieldOrder = []Field{
	FieldTasks,
	FieldExecutors,
	FieldDueDate,
	FieldCompletionStatus,
	FieldResult,
	FieldSignature,
	FieldComment,
}

// ParseField resolves a field name, accepting the legacy "executor" spelling.
func ParseField(name string) (Field, error) {
	switch name {
	case "executor":
		return FieldExecutors, nil
	case string(FieldRegion), string(FieldTasks), string(FieldExecutors), string(FieldDueDate),
		string(FieldCompletionStatus), string(FieldResult), string(FieldSignature), string(FieldComment):
		return Field(name), nil
	}
	return "", &ValidationError{Field: "field", Message: fmt.Sprintf("unknown field %q", name)}
}

// SharedFields are entered once per merge group.
type SharedFields struct {
	Region string `json:"region"`
}

// SubRowFields belong to exactly one physical row of a merge group.
type SubRowFields struct {
	Tasks            string   `json:"tasks"`
	Executors        []string `json:"executors"`
	DueDate          string   `json:"dueDate"`
	CompletionStatus string   `json:"completionStatus"`
	Result           string   `json:"result"`
	Signature        string   `json:"signature"`
	Comment          string   `json:"comment"`
}

// Clone returns a deep copy.
func (f SubRowFields) Clone() SubRowFields {
	f.Executors = slices.Clone(f.Executors)
	return f
}

// Value returns the field as it would be displayed: executors are returned as
// []string, everything else as string. FieldRegion is not a sub-row field.
func (f SubRowFields) Value(field Field) any {
	switch field {
	case FieldTasks:
		return f.Tasks
	case FieldExecutors:
		return slices.Clone(f.Executors)
	case FieldDueDate:
		return f.DueDate
	case FieldCompletionStatus:
		return f.CompletionStatus
	case FieldResult:
		return f.Result
	case FieldSignature:
		return f.Signature
	case FieldComment:
		return f.Comment
	}
	return nil
}

func (f *SubRowFields) set(field Field, value any) error {
	if field == FieldExecutors {
		names, ok := value.([]string)
		if !ok {
			return &ValidationError{Field: string(field), Message: fmt.Sprintf("expected list of names, got %T", value)}
		}
		f.Executors = slices.Clone(names)
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return &ValidationError{Field: string(field), Message: fmt.Sprintf("expected text, got %T", value)}
	}
	switch field {
	case FieldTasks:
		f.Tasks = s
	case FieldDueDate:
		f.DueDate = s
	case FieldCompletionStatus:
		f.CompletionStatus = s
	case FieldResult:
		f.Result = s
	case FieldSignature:
		f.Signature = s
	case FieldComment:
		f.Comment = s
	default:
		return &ValidationError{Field: string(field), Message: "not a sub-row field"}
	}
	return nil
}

// SubRowView is the field-set of one physical row, region included.
type SubRowView struct {
	Region string
	SubRowFields
}

// RowRecord is one logical table entry. It represents len(SubRows) physical
// rows sharing a single region cell.
type RowRecord struct {
	ID      string
	Shared  SharedFields
	SubRows []SubRowFields
}

// NewRowRecord returns an unmerged record with empty fields.
func NewRowRecord(id string) RowRecord {
	return RowRecord{ID: id, SubRows: []SubRowFields{{}}}
}

// MergedCount is the number of physical rows the record spans (always >= 1).
func (r RowRecord) MergedCount() int {
	if len(r.SubRows) == 0 {
		return 1
	}
	return len(r.SubRows)
}

// IsMerged reports whether the record spans more than one physical row.
func (r RowRecord) IsMerged() bool { return r.MergedCount() > 1 }

// Primary returns the fields of sub-row 0.
func (r RowRecord) Primary() SubRowFields {
	if len(r.SubRows) == 0 {
		return SubRowFields{}
	}
	return r.SubRows[0].Clone()
}

// SubRow returns the field-set for physical row k. Missing sub-rows yield
// empty fields; the shared region is always included.
func (r RowRecord) SubRow(k int) SubRowView {
	view := SubRowView{Region: r.Shared.Region}
	if k >= 0 && k < len(r.SubRows) {
		view.SubRowFields = r.SubRows[k].Clone()
	}
	return view
}

// SetSubRowField writes value into sub-row k. FieldRegion always targets the
// shared region regardless of k.
func (r *RowRecord) SetSubRowField(k int, field Field, value any) error {
	if field == FieldRegion {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: string(field), Message: fmt.Sprintf("expected text, got %T", value)}
		}
		r.Shared.Region = s
		return nil
	}
	if k < 0 || k >= r.MergedCount() {
		return &ValidationError{Field: "sub_row", Message: fmt.Sprintf("sub-row %d outside group of %d", k, r.MergedCount())}
	}
	r.Normalize()
	next := r.SubRows[k].Clone()
	if err := next.set(field, value); err != nil {
		return err
	}
	r.SubRows[k] = next
	return nil
}

// Normalize guarantees at least one sub-row.
func (r *RowRecord) Normalize() {
	if len(r.SubRows) == 0 {
		r.SubRows = []SubRowFields{{}}
	}
}

// Clone returns a deep copy.
func (r RowRecord) Clone() RowRecord {
	out := RowRecord{ID: r.ID, Shared: r.Shared}
	if r.SubRows != nil {
		out.SubRows = make([]SubRowFields, len(r.SubRows))
		for i, sub := range r.SubRows {
			out.SubRows[i] = sub.Clone()
		}
	}
	return out
}

// CloneRows deep-copies a row sequence.
func CloneRows(rows []RowRecord) []RowRecord {
	if rows == nil {
		return nil
	}
	out := make([]RowRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// PhysicalRowCount sums MergedCount over the sequence.
func PhysicalRowCount(rows []RowRecord) int {
	n := 0
	for _, r := range rows {
		n += r.MergedCount()
	}
	return n
}
