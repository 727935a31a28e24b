package provider

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/position"
)

type memCard struct {
	card     board.Card
	key      int // fractional ordering key within the column
	comments []string
}

type memColumn struct {
	id    int64
	name  string
	cards []*memCard
}

// Memory is an in-process board provider. It supports every optional
// capability and maintains card order with the same fractional keys a real
// backend would use.
type Memory struct {
	mu        sync.Mutex
	projectID int64
	columns   []*memColumn
	nextID    int64
	now       func() time.Time
}

// NewMemory creates an empty board with the given columns, in order.
func NewMemory(projectID int64, columnNames ...string) *Memory {
	m := &Memory{
		projectID: projectID,
		nextID:    1,
		now:       time.Now,
	}
	for i, name := range columnNames {
		m.columns = append(m.columns, &memColumn{id: int64(i + 1), name: name})
	}
	return m
}

// SetClock replaces the timestamp source, for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

// Capabilities reports full support.
func (m *Memory) Capabilities() board.Capabilities {
	return board.Capabilities{
		Remove:   true,
		Assign:   true,
		Labels:   true,
		Comments: true,
		Priority: true,
		Points:   true,
		DueDates: true,
	}
}

// GetBoardState returns a deep snapshot of the board.
func (m *Memory) GetBoardState(ctx context.Context, projectID int64) (*board.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if projectID != m.projectID {
		return nil, output.ErrNotFound("project", itoa(projectID))
	}

	state := &board.State{ProjectID: m.projectID}
	for i, col := range m.columns {
		out := board.Column{ID: col.id, Name: col.name, Position: i + 1}
		for j, mc := range col.cards {
			card := mc.card
			card.Labels = append([]string(nil), mc.card.Labels...)
			card.Assignees = append([]string(nil), mc.card.Assignees...)
			card.Position = j + 1
			out.Cards = append(out.Cards, card)
		}
		state.Columns = append(state.Columns, out)
	}
	return state, nil
}

// CreateTask appends a card to the end of the given column.
func (m *Memory) CreateTask(ctx context.Context, projectID int64, title string, columnID int64, description string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.findColumn(columnID)
	if col == nil {
		return 0, output.ErrNotFound("column", itoa(columnID))
	}

	key := position.Step
	if n := len(col.cards); n > 0 {
		key = col.cards[n-1].key + position.Step
	}

	id := m.nextID
	m.nextID++
	now := m.now().UTC().Format(time.RFC3339)
	col.cards = append(col.cards, &memCard{
		card: board.Card{
			ID:             id,
			Title:          title,
			Description:    description,
			CreatedAt:      now,
			LastActivityAt: now,
		},
		key: key,
	})
	return id, nil
}

// MoveTask places a card at a 1-based display position in the target column,
// allocating a fractional key between its new neighbors.
func (m *Memory) MoveTask(ctx context.Context, projectID, taskID, columnID int64, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.findColumn(columnID)
	if target == nil {
		return output.ErrNotFound("column", itoa(columnID))
	}

	card := m.detach(taskID)
	if card == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}

	idx := pos - 1
	if pos <= 0 || idx > len(target.cards) {
		idx = len(target.cards)
	}

	var prev, next *int
	if idx > 0 {
		prev = &target.cards[idx-1].key
	}
	if idx < len(target.cards) {
		next = &target.cards[idx].key
	}
	card.key = position.Compute(prev, next)
	card.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)

	target.cards = append(target.cards, nil)
	copy(target.cards[idx+1:], target.cards[idx:])
	target.cards[idx] = card

	m.reindexIfNeeded(target)
	return nil
}

// UpdateTask applies a partial update.
func (m *Memory) UpdateTask(ctx context.Context, projectID, taskID int64, patch board.TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}

	if patch.Title != nil {
		mc.card.Title = *patch.Title
	}
	if patch.Description != nil {
		mc.card.Description = *patch.Description
	}
	if patch.DueDate != nil {
		mc.card.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		mc.card.Priority = *patch.Priority
	}
	if patch.Points != nil {
		mc.card.Points = *patch.Points
	}
	mc.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)
	return nil
}

// RemoveTask deletes a card.
func (m *Memory) RemoveTask(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detach(taskID) == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}
	return nil
}

// AssignTask adds an assignee if not already present.
func (m *Memory) AssignTask(ctx context.Context, taskID int64, assignee string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}
	for _, a := range mc.card.Assignees {
		if a == assignee {
			return nil
		}
	}
	mc.card.Assignees = append(mc.card.Assignees, assignee)
	mc.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)
	return nil
}

// AddTaskLabel attaches a label if not already present.
func (m *Memory) AddTaskLabel(ctx context.Context, taskID int64, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}
	for _, l := range mc.card.Labels {
		if l == label {
			return nil
		}
	}
	mc.card.Labels = append(mc.card.Labels, label)
	mc.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)
	return nil
}

// RemoveTaskLabel detaches a label. Removing an absent label is a no-op.
func (m *Memory) RemoveTaskLabel(ctx context.Context, taskID int64, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return output.ErrNotFound("card", itoa(taskID))
	}
	for i, l := range mc.card.Labels {
		if l == label {
			mc.card.Labels = append(mc.card.Labels[:i], mc.card.Labels[i+1:]...)
			break
		}
	}
	mc.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)
	return nil
}

// AddComment records a comment and returns a synthetic comment id.
func (m *Memory) AddComment(ctx context.Context, taskID int64, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return 0, output.ErrNotFound("card", itoa(taskID))
	}
	mc.comments = append(mc.comments, content)
	mc.card.LastActivityAt = m.now().UTC().Format(time.RFC3339)
	return int64(len(mc.comments)), nil
}

// Comments returns the comments recorded for a card, for tests.
func (m *Memory) Comments(taskID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := m.findCard(taskID)
	if mc == nil {
		return nil
	}
	return append([]string(nil), mc.comments...)
}

func (m *Memory) findColumn(columnID int64) *memColumn {
	for _, col := range m.columns {
		if col.id == columnID {
			return col
		}
	}
	return nil
}

func (m *Memory) findCard(taskID int64) *memCard {
	for _, col := range m.columns {
		for _, mc := range col.cards {
			if mc.card.ID == taskID {
				return mc
			}
		}
	}
	return nil
}

// detach removes the card from whatever column holds it and returns it.
func (m *Memory) detach(taskID int64) *memCard {
	for _, col := range m.columns {
		for i, mc := range col.cards {
			if mc.card.ID == taskID {
				col.cards = append(col.cards[:i], col.cards[i+1:]...)
				return mc
			}
		}
	}
	return nil
}

func (m *Memory) reindexIfNeeded(col *memColumn) {
	keys := make([]int, len(col.cards))
	for i, mc := range col.cards {
		keys[i] = mc.key
	}
	if !position.NeedsReindex(keys) {
		return
	}

	ids := make([]int64, len(col.cards))
	for i, mc := range col.cards {
		ids[i] = mc.card.ID
	}
	fresh := position.Reindex(ids)
	for _, mc := range col.cards {
		mc.key = fresh[mc.card.ID]
	}
	sort.SliceStable(col.cards, func(i, j int) bool {
		return col.cards[i].key < col.cards[j].key
	})
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
