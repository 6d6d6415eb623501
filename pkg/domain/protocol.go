package domain

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for protocol and due dates.
const DateLayout = "2006-01-02"

// Protocol is one meeting-minutes document.
type Protocol struct {
	ID        int64       `json:"id,omitempty"`
	Date      string      `json:"date"`
	Name      string      `json:"name"`
	Number    int         `json:"number"`
	Secretary string      `json:"secretary"`
	Rows      []RowRecord `json:"rows"`
}

// Validate checks the required metadata fields.
func (p Protocol) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, &ValidationError{Field: "name", Message: "required"})
	}
	if strings.TrimSpace(p.Date) == "" {
		errs = append(errs, &ValidationError{Field: "date", Message: "required"})
	} else if _, err := time.Parse(DateLayout, p.Date); err != nil {
		errs = append(errs, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD"})
	}
	if p.Number <= 0 {
		errs = append(errs, &ValidationError{Field: "number", Message: "required"})
	}
	if strings.TrimSpace(p.Secretary) == "" {
		errs = append(errs, &ValidationError{Field: "secretary", Message: "required"})
	}
	if len(errs) == 1 {
		return errs[0]
	}
	if len(errs) > 1 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return &ValidationError{Message: "missing required fields: " + strings.Join(msgs, "; ")}
	}
	return validateRowIDs(p.Rows)
}

// Clone returns a deep copy.
func (p Protocol) Clone() Protocol {
	p.Rows = CloneRows(p.Rows)
	return p
}

func validateRowIDs(rows []RowRecord) error {
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return &ValidationError{Field: "rows", Message: "row without id at position " + strconv.Itoa(i)}
		}
		if _, dup := seen[row.ID]; dup {
			return &ValidationError{Field: "rows", Message: "duplicate row id " + row.ID}
		}
		seen[row.ID] = struct{}{}
	}
	return nil
}
