package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"protocoldesk/internal/editor"
	"protocoldesk/internal/render"
	"protocoldesk/pkg/domain"
)

type fieldUpdate struct {
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
	SubRow int             `json:"sub_row"`
}

// decode resolves the field and converts the JSON value to the Go type the
// field expects. Executors accept either a list or a single comma-separated
// string.
func (u fieldUpdate) decode() (domain.Field, any, error) {
	field, err := domain.ParseField(u.Field)
	if err != nil {
		return "", nil, err
	}
	if field == domain.FieldExecutors {
		var names []string
		if err := json.Unmarshal(u.Value, &names); err == nil {
			return field, names, nil
		}
		var joined string
		if err := json.Unmarshal(u.Value, &joined); err != nil {
			return "", nil, &domain.ValidationError{Field: "value", Message: "expected a list of names"}
		}
		return field, splitNames(joined), nil
	}
	var text string
	if err := json.Unmarshal(u.Value, &text); err != nil {
		return "", nil, &domain.ValidationError{Field: "value", Message: "expected text"}
	}
	return field, text, nil
}

func splitNames(joined string) []string {
	parts := strings.Split(joined, strings.TrimSpace(render.ExecutorSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// selectionRequest names the records to operate on, by id or by position.
// Ids take precedence when both are given.
type selectionRequest struct {
	Positions []int    `json:"positions"`
	RowIDs    []string `json:"row_ids"`
}

func (r selectionRequest) apply(s *editor.Session) error {
	if len(r.RowIDs) == 0 {
		return s.Select(r.Positions...)
	}
	s.ClearSelection()
	ids := slices.Clone(r.RowIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if err := s.ToggleSelectionID(id); err != nil {
			return err
		}
	}
	return nil
}

type structuralOp func(*editor.Session) error

func mergeOp(s *editor.Session) error { return s.MergeSelected() }

func splitOp(s *editor.Session) error {
	s.SplitSelected()
	return nil
}

func deleteOp(s *editor.Session) error {
	s.DeleteSelected()
	return nil
}

func (s *Server) addRow(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	var row domain.RowRecord
	saved, err := s.svc.EditRows(c.Request.Context(), id, func(session *editor.Session) error {
		row = session.AddRow()
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"row": row, "protocol": saved})
}

func (s *Server) updateField(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	var req fieldUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid field update: "+err.Error())
		return
	}
	field, value, err := req.decode()
	if err != nil {
		writeError(c, err)
		return
	}
	rowID := c.Param("rowID")
	saved, err := s.svc.EditRows(c.Request.Context(), id, func(session *editor.Session) error {
		return session.UpdateField(rowID, field, value, req.SubRow)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) structural(op structuralOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := protocolID(c)
		if !ok {
			return
		}
		var req selectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "invalid selection: "+err.Error())
			return
		}
		saved, err := s.svc.EditRows(c.Request.Context(), id, func(session *editor.Session) error {
			if err := req.apply(session); err != nil {
				return err
			}
			return op(session)
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}
