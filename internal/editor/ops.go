// Package editor implements the row-table editing state machine: appending,
// field updates, selection, merge, split and delete over an ordered sequence
// of domain.RowRecord.
package editor

import (
	"fmt"
	"slices"

	"protocoldesk/pkg/domain"
)

// IDFunc allocates a fresh, never reused row id.
type IDFunc func() string

// Merge folds the records at positions into the one at the smallest position.
// Each other selected record contributes its primary fields as the next
// sub-row; its region and any sub-rows of its own are dropped. The merged
// record keeps its place and unselected records keep their relative order.
func Merge(rows []domain.RowRecord, positions []int) ([]domain.RowRecord, error) {
	sorted, err := normalizePositions(positions, len(rows))
	if err != nil {
		return nil, err
	}
	if len(sorted) < 2 {
		return nil, &domain.ValidationError{Field: "selection", Message: "select at least two rows"}
	}

	target := rows[sorted[0]].Clone()
	subs := make([]domain.SubRowFields, 0, len(sorted))
	subs = append(subs, target.Primary())
	for _, pos := range sorted[1:] {
		subs = append(subs, rows[pos].Primary())
	}
	target.SubRows = subs

	selected := positionSet(sorted)
	out := make([]domain.RowRecord, 0, len(rows)-len(sorted)+1)
	for i, row := range rows {
		switch {
		case i == sorted[0]:
			out = append(out, target)
		case selected[i]:
		default:
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// Split replaces every selected merged record with one unmerged record per
// sub-row. Sub-row 0 keeps the original id; the others get ids from newID.
// All resulting records carry the group's region. Unselected and unmerged
// records pass through unchanged.
func Split(rows []domain.RowRecord, positions []int, newID IDFunc) ([]domain.RowRecord, error) {
	sorted, err := normalizePositions(positions, len(rows))
	if err != nil {
		return nil, err
	}
	selected := positionSet(sorted)
	out := make([]domain.RowRecord, 0, len(rows))
	for i, row := range rows {
		if !selected[i] || !row.IsMerged() {
			out = append(out, row.Clone())
			continue
		}
		for k := 0; k < row.MergedCount(); k++ {
			id := row.ID
			if k > 0 {
				id = newID()
			}
			out = append(out, domain.RowRecord{
				ID:      id,
				Shared:  row.Shared,
				SubRows: []domain.SubRowFields{row.SubRow(k).SubRowFields},
			})
		}
	}
	return out, nil
}

// Delete removes the records at positions.
func Delete(rows []domain.RowRecord, positions []int) ([]domain.RowRecord, error) {
	sorted, err := normalizePositions(positions, len(rows))
	if err != nil {
		return nil, err
	}
	selected := positionSet(sorted)
	out := make([]domain.RowRecord, 0, len(rows)-len(sorted))
	for i, row := range rows {
		if !selected[i] {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// normalizePositions sorts and de-duplicates positions, rejecting any outside
// [0, n).
func normalizePositions(positions []int, n int) ([]int, error) {
	out := make([]int, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= n {
			return nil, &domain.ValidationError{Field: "selection", Message: fmt.Sprintf("position %d outside table of %d rows", pos, n)}
		}
		out = append(out, pos)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func positionSet(positions []int) map[int]bool {
	set := make(map[int]bool, len(positions))
	for _, pos := range positions {
		set[pos] = true
	}
	return set
}
