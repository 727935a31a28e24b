// Package board provides canonical type definitions for board entities and
// the provider interface the rest of the CLI is written against.
package board

import "context"

// Card represents a single card on the board.
type Card struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	DueDate        string   `json:"due_date,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`
	Points         int      `json:"points,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Position       int      `json:"position"`
	CreatedAt      string   `json:"created_at,omitempty"`
	LastActivityAt string   `json:"last_activity_at,omitempty"`
}

// Column represents one column of the board, cards in display order.
type Column struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// State is a full snapshot of one project's board.
type State struct {
	ProjectID int64    `json:"project_id"`
	Columns   []Column `json:"columns"`
}

// TaskPatch describes a partial update to a card. Nil fields are left
// untouched.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Points      *int    `json:"points,omitempty"`
}

// Capabilities reports which optional operations a provider supports.
// Required operations (board state, create, move, update) are always present.
type Capabilities struct {
	Remove   bool `json:"remove"`
	Assign   bool `json:"assign"`
	Labels   bool `json:"labels"`
	Comments bool `json:"comments"`
	Priority bool `json:"priority"`
	Points   bool `json:"points"`
	DueDates bool `json:"due_dates"`
}

// Provider is the board store the dispatcher mutates. Implementations must
// treat position as a 1-based display index within the target column.
type Provider interface {
	GetBoardState(ctx context.Context, projectID int64) (*State, error)
	CreateTask(ctx context.Context, projectID int64, title string, columnID int64, description string) (int64, error)
	MoveTask(ctx context.Context, projectID, taskID, columnID int64, position int) error
	UpdateTask(ctx context.Context, projectID, taskID int64, patch TaskPatch) error
	RemoveTask(ctx context.Context, taskID int64) error
	AssignTask(ctx context.Context, taskID int64, assignee string) error
	AddTaskLabel(ctx context.Context, taskID int64, label string) error
	RemoveTaskLabel(ctx context.Context, taskID int64, label string) error
	AddComment(ctx context.Context, taskID int64, content string) (int64, error)

	// Capabilities is the typed probe the dispatcher consults before calling
	// an optional operation. Unsupported operations must never be called.
	Capabilities() Capabilities
}

// FindCard returns the card with the given id along with its column, or nil
// if it is not on the board.
func (s *State) FindCard(taskID int64) (*Card, *Column) {
	for i := range s.Columns {
		col := &s.Columns[i]
		for j := range col.Cards {
			if col.Cards[j].ID == taskID {
				return &col.Cards[j], col
			}
		}
	}
	return nil, nil
}

// FindColumn returns the column with the given id, or nil.
func (s *State) FindColumn(columnID int64) *Column {
	for i := range s.Columns {
		if s.Columns[i].ID == columnID {
			return &s.Columns[i]
		}
	}
	return nil
}
