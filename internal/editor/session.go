package editor

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"protocoldesk/pkg/domain"
)

// Saver persists a protocol snapshot and returns the stored version.
type Saver interface {
	SaveProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, p domain.Protocol) (domain.Protocol, error)

// SaveProtocol implements Saver.
func (f SaverFunc) SaveProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
	return f(ctx, p)
}

// Option configures a Session.
type Option func(*Session)

// WithIDFunc overrides row id allocation.
func WithIDFunc(fn IDFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger attaches a logger for rejected edits.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session holds the editable state of one protocol: its metadata, the row
// sequence and the current selection. Selection is tracked by row id and
// resolved to positions when an operation runs. Every structural change
// (merge, split, delete) clears the selection.
//
// A Session is not safe for concurrent use.
type Session struct {
	meta     domain.Protocol
	rows     []domain.RowRecord
	selected map[string]struct{}
	newID    IDFunc
	logger   zerolog.Logger
}

// NewSession starts editing p. Rows without an id, or with an id already used
// by an earlier row, are given fresh ids.
func NewSession(p domain.Protocol, opts ...Option) *Session {
	s := &Session{
		selected: make(map[string]struct{}),
		newID:    uuid.NewString,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.meta = p
	s.meta.Rows = nil
	s.rows = domain.CloneRows(p.Rows)
	seen := make(map[string]struct{}, len(s.rows))
	for i := range s.rows {
		s.rows[i].Normalize()
		if _, dup := seen[s.rows[i].ID]; dup || s.rows[i].ID == "" {
			old := s.rows[i].ID
			s.rows[i].ID = s.newID()
			s.logger.Debug().Str("old_id", old).Str("new_id", s.rows[i].ID).Int("position", i).Msg("reassigned row id")
		}
		seen[s.rows[i].ID] = struct{}{}
	}
	return s
}

// Protocol returns a deep snapshot of the metadata and rows.
func (s *Session) Protocol() domain.Protocol {
	p := s.meta
	p.Rows = domain.CloneRows(s.rows)
	if p.Rows == nil {
		p.Rows = []domain.RowRecord{}
	}
	return p
}

// Rows returns a deep copy of the row sequence.
func (s *Session) Rows() []domain.RowRecord { return domain.CloneRows(s.rows) }

// Len is the number of records.
func (s *Session) Len() int { return len(s.rows) }

// AddRow appends an empty unmerged record and returns it.
func (s *Session) AddRow() domain.RowRecord {
	row := domain.NewRowRecord(s.newID())
	s.rows = append(s.rows, row)
	return row.Clone()
}

// UpdateField writes value into sub-row subRow of the record with the given
// id. Region writes always land on the group's shared region. An unknown id
// yields a NotFoundError and leaves the table unchanged.
func (s *Session) UpdateField(id string, field domain.Field, value any, subRow int) error {
	pos := s.indexOf(id)
	if pos < 0 {
		s.logger.Warn().Str("row_id", id).Str("field", string(field)).Msg("update for unknown row ignored")
		return &domain.NotFoundError{Entity: domain.EntityRow, ID: id}
	}
	if err := s.rows[pos].SetSubRowField(subRow, field, value); err != nil {
		s.logger.Warn().Err(err).Str("row_id", id).Str("field", string(field)).Int("sub_row", subRow).Msg("update rejected")
		return err
	}
	return nil
}

// ToggleSelection flips membership of the record at position.
func (s *Session) ToggleSelection(position int) error {
	if position < 0 || position >= len(s.rows) {
		return &domain.ValidationError{Field: "selection", Message: "position out of range"}
	}
	s.toggle(s.rows[position].ID)
	return nil
}

// ToggleSelectionID flips membership of the record with the given id.
func (s *Session) ToggleSelectionID(id string) error {
	if s.indexOf(id) < 0 {
		return &domain.NotFoundError{Entity: domain.EntityRow, ID: id}
	}
	s.toggle(id)
	return nil
}

// Select replaces the selection with the records at positions.
func (s *Session) Select(positions ...int) error {
	sorted, err := normalizePositions(positions, len(s.rows))
	if err != nil {
		return err
	}
	clear(s.selected)
	for _, pos := range sorted {
		s.selected[s.rows[pos].ID] = struct{}{}
	}
	return nil
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() { clear(s.selected) }

// IsSelected reports whether the record at position is selected.
func (s *Session) IsSelected(position int) bool {
	if position < 0 || position >= len(s.rows) {
		return false
	}
	_, ok := s.selected[s.rows[position].ID]
	return ok
}

// SelectedPositions returns the current selection as ascending positions.
func (s *Session) SelectedPositions() []int {
	out := make([]int, 0, len(s.selected))
	for i, row := range s.rows {
		if _, ok := s.selected[row.ID]; ok {
			out = append(out, i)
		}
	}
	return out
}

// SelectedIDs returns the ids of selected records in table order.
func (s *Session) SelectedIDs() []string {
	positions := s.SelectedPositions()
	out := make([]string, len(positions))
	for i, pos := range positions {
		out[i] = s.rows[pos].ID
	}
	return out
}

// CanMerge reports whether at least two records are selected.
func (s *Session) CanMerge() bool { return len(s.SelectedPositions()) >= 2 }

// CanSplit reports whether any selected record spans more than one row.
func (s *Session) CanSplit() bool {
	return slices.ContainsFunc(s.SelectedPositions(), func(pos int) bool { return s.rows[pos].IsMerged() })
}

// MergeSelected merges the selected records. Fewer than two selected records
// yields a ValidationError with table and selection unchanged.
func (s *Session) MergeSelected() error {
	next, err := Merge(s.rows, s.SelectedPositions())
	if err != nil {
		return err
	}
	s.logger.Debug().Strs("row_ids", s.SelectedIDs()).Msg("merged rows")
	s.rows = next
	clear(s.selected)
	return nil
}

// SplitSelected splits every selected merged record. Selected unmerged
// records are left as they are. The selection is always cleared.
func (s *Session) SplitSelected() {
	next, err := Split(s.rows, s.SelectedPositions(), s.newID)
	if err != nil {
		// positions come from the live table so they are always in range
		s.logger.Error().Err(err).Msg("split failed")
		return
	}
	s.rows = next
	clear(s.selected)
}

// DeleteSelected removes the selected records and clears the selection.
func (s *Session) DeleteSelected() {
	next, err := Delete(s.rows, s.SelectedPositions())
	if err != nil {
		s.logger.Error().Err(err).Msg("delete failed")
		return
	}
	s.rows = next
	clear(s.selected)
}

// Save hands a snapshot to saver. On success the stored id and metadata are
// adopted; on failure the session is left exactly as it was and the error is
// returned as a PersistenceError unless it is already a domain error.
func (s *Session) Save(ctx context.Context, saver Saver) (domain.Protocol, error) {
	snapshot := s.Protocol()
	if err := snapshot.Validate(); err != nil {
		return domain.Protocol{}, err
	}
	saved, err := saver.SaveProtocol(ctx, snapshot)
	if err != nil {
		s.logger.Error().Err(err).Int64("protocol_id", snapshot.ID).Msg("save failed")
		return domain.Protocol{}, domain.WrapPersistence("save protocol", err)
	}
	s.meta.ID = saved.ID
	s.meta.Date = saved.Date
	s.meta.Name = saved.Name
	s.meta.Number = saved.Number
	s.meta.Secretary = saved.Secretary
	return saved, nil
}

func (s *Session) toggle(id string) {
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return
	}
	s.selected[id] = struct{}{}
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.rows, func(r domain.RowRecord) bool { return r.ID == id })
}
