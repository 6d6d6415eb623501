package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type rowWire struct {
	ID      string       `json:"id"`
	Region  string       `json:"region"`
	SubRows []subRowWire `json:"sub_rows"`
}

type subRowWire struct {
	Tasks            string   `json:"tasks"`
	Executors        []string `json:"executors"`
	DueDate          string   `json:"dueDate"`
	CompletionStatus string   `json:"completionStatus"`
	Result           string   `json:"result"`
	Signature        string   `json:"signature"`
	Comment          string   `json:"comment"`
}

// MarshalJSON encodes the record as {"id","region","sub_rows":[...]}.
func (r RowRecord) MarshalJSON() ([]byte, error) {
	w := rowWire{ID: r.ID, Region: r.Shared.Region, SubRows: make([]subRowWire, 0, r.MergedCount())}
	subs := r.SubRows
	if len(subs) == 0 {
		subs = []SubRowFields{{}}
	}
	for _, sub := range subs {
		executors := sub.Executors
		if executors == nil {
			executors = []string{}
		}
		w.SubRows = append(w.SubRows, subRowWire{
			Tasks:            sub.Tasks,
			Executors:        executors,
			DueDate:          sub.DueDate,
			CompletionStatus: sub.CompletionStatus,
			Result:           sub.Result,
			Signature:        sub.Signature,
			Comment:          sub.Comment,
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the current encoding and the legacy flat encoding in
// which sub-row 0 is inline, extras live under "row1".."rowN" and the group
// size is "mergedRows".
func (r *RowRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if _, ok := fields["sub_rows"]; ok {
		var w rowWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		out := RowRecord{ID: w.ID, Shared: SharedFields{Region: w.Region}}
		for _, sub := range w.SubRows {
			out.SubRows = append(out.SubRows, SubRowFields(sub))
		}
		out.Normalize()
		*r = out
		return nil
	}
	return r.decodeLegacy(fields)
}

// maxLegacyMergedRows caps the sub-row count read from a legacy mergedRows value.
const maxLegacyMergedRows = 1000

func (r *RowRecord) decodeLegacy(fields map[string]json.RawMessage) error {
	id, err := legacyString(fields["id"])
	if err != nil {
		return fmt.Errorf("decode row id: %w", err)
	}
	region, err := legacyString(fields["region"])
	if err != nil {
		return fmt.Errorf("decode row region: %w", err)
	}
	primary, err := legacySubRow(fields)
	if err != nil {
		return err
	}
	count := 1
	if raw, ok := fields["mergedRows"]; ok && !isNull(raw) {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("decode mergedRows: %w", err)
		}
		if n > maxLegacyMergedRows {
			return &ValidationError{Field: "mergedRows", Message: fmt.Sprintf("%d exceeds the limit of %d sub-rows", n, maxLegacyMergedRows)}
		}
		if n > 1 {
			count = n
		}
	}
	out := RowRecord{ID: id, Shared: SharedFields{Region: region}, SubRows: make([]SubRowFields, count)}
	out.SubRows[0] = primary
	for k := 1; k < count; k++ {
		raw, ok := fields["row"+strconv.Itoa(k)]
		if !ok || isNull(raw) {
			continue
		}
		var extra map[string]json.RawMessage
		if err := json.Unmarshal(raw, &extra); err != nil {
			return fmt.Errorf("decode row%d: %w", k, err)
		}
		sub, err := legacySubRow(extra)
		if err != nil {
			return fmt.Errorf("decode row%d: %w", k, err)
		}
		out.SubRows[k] = sub
	}
	*r = out
	return nil
}

func legacySubRow(fields map[string]json.RawMessage) (SubRowFields, error) {
	var sub SubRowFields
	var err error
	targets := []struct {
		key string
		dst *string
	}{
		{"tasks", &sub.Tasks},
		{"dueDate", &sub.DueDate},
		{"completionStatus", &sub.CompletionStatus},
		{"result", &sub.Result},
		{"signature", &sub.Signature},
		{"comment", &sub.Comment},
	}
	for _, t := range targets {
		if *t.dst, err = legacyString(fields[t.key]); err != nil {
			return SubRowFields{}, fmt.Errorf("decode %s: %w", t.key, err)
		}
	}
	raw, ok := fields["executor"]
	if !ok {
		raw = fields["executors"]
	}
	if sub.Executors, err = legacyNames(raw); err != nil {
		return SubRowFields{}, fmt.Errorf("decode executor: %w", err)
	}
	return sub, nil
}

// legacyString reads a string, number or null.
func legacyString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func legacyNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names, nil
	}
	single, err := legacyString(raw)
	if err != nil {
		return nil, err
	}
	if single == "" {
		return nil, nil
	}
	return []string{single}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
