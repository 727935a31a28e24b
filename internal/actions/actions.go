// Package actions defines the closed, tagged set of board actions the parser
// emits and the dispatcher executes, plus their structural validation.
package actions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type is the action discriminator. It uniquely determines which optional
// fields of Action are meaningful; unknown discriminators are rejected.
type Type string

const (
	TypeCreateTask  Type = "create_task"
	TypeMoveTask    Type = "move_task"
	TypeUpdateTask  Type = "update_task"
	TypeAssignTask  Type = "assign_task"
	TypeTagTask     Type = "tag_task"
	TypeCommentTask Type = "comment_task"
	TypeSetDue      Type = "set_due"
	TypeSetPoints   Type = "set_points"
	TypeListTasks   Type = "list_tasks"
	TypeSearchTasks Type = "search_tasks"
	TypeUndo        Type = "undo"
	TypeUndoLast    Type = "undo_last"
	TypeTidyBoard   Type = "tidy_board"
	TypeTidyColumn  Type = "tidy_column"
	TypePreview     Type = "preview"
)

// Priorities accepted on create/update.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// TaskRef identifies a task either by positive numeric id or by free text
// for fuzzy title lookup. Exactly one side is set.
type TaskRef struct {
	ID    int64
	Title string
}

// ByID returns a numeric task reference.
func ByID(id int64) TaskRef { return TaskRef{ID: id} }

// ByTitle returns a free-text task reference.
func ByTitle(title string) TaskRef { return TaskRef{Title: title} }

// IsZero reports whether the reference is unset.
func (r TaskRef) IsZero() bool { return r.ID == 0 && r.Title == "" }

func (r TaskRef) String() string {
	if r.ID > 0 {
		return "#" + strconv.FormatInt(r.ID, 10)
	}
	return r.Title
}

// MarshalJSON encodes an id reference as a JSON number and a title reference
// as a string, matching the wire shape of the serve bridge.
func (r TaskRef) MarshalJSON() ([]byte, error) {
	if r.ID > 0 {
		return json.Marshal(r.ID)
	}
	return json.Marshal(r.Title)
}

func (r *TaskRef) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*r = TaskRef{ID: id}
		return nil
	}
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		*r = TaskRef{Title: title}
		return nil
	}
	return fmt.Errorf("task ref must be a number or string")
}

// Action is one parsed instruction. Only the fields relevant to Type are set.
type Action struct {
	Type Type `json:"type"`

	// create_task / update_task
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    string   `json:"priority,omitempty"`

	// Task reference for single-target actions.
	Task TaskRef `json:"task,omitempty"`

	// move_task / create_task / list_tasks / tidy_column
	Column   string `json:"column,omitempty"`
	Position int    `json:"position,omitempty"`

	// assign_task
	Assignee string `json:"assignee,omitempty"`

	// tag_task
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`

	// comment_task
	Comment string `json:"comment,omitempty"`

	// set_due
	When  string  `json:"when,omitempty"`
	IDs   []int64 `json:"ids,omitempty"`
	First int     `json:"first,omitempty"`

	// set_points
	Points int `json:"points,omitempty"`

	// list_tasks
	Filter string `json:"filter,omitempty"`

	// search_tasks
	Query string `json:"query,omitempty"`

	// undo
	Token string `json:"token,omitempty"`

	// tidy_board / tidy_column
	Preview bool `json:"preview,omitempty"`
	Confirm bool `json:"confirm,omitempty"`

	// preview
	Actions []Action `json:"actions,omitempty"`
}

// ValidationError identifies the field that failed structural validation.
type ValidationError struct {
	Action Type
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Action, e.Field, e.Reason)
}

func invalid(t Type, field, reason string) error {
	return &ValidationError{Action: t, Field: field, Reason: reason}
}

// Validate checks an action's per-variant shape constraints. Cross-field
// business validation (does the column exist, is the task on the board) is
// the dispatcher's job.
func Validate(a Action) error {
	switch a.Type {
	case TypeCreateTask:
		if strings.TrimSpace(a.Title) == "" {
			return invalid(a.Type, "title", "must not be empty")
		}
		if err := validPriority(a); err != nil {
			return err
		}
	case TypeMoveTask:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if a.Column == "" {
			return invalid(a.Type, "column", "must not be empty")
		}
	case TypeUpdateTask:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if a.Title == "" && a.Description == "" && a.Priority == "" && len(a.Tags) == 0 {
			return invalid(a.Type, "fields", "nothing to update")
		}
		if err := validPriority(a); err != nil {
			return err
		}
	case TypeAssignTask:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if strings.TrimSpace(a.Assignee) == "" {
			return invalid(a.Type, "assignee", "must not be empty")
		}
	case TypeTagTask:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if len(a.Add) == 0 && len(a.Remove) == 0 {
			return invalid(a.Type, "tags", "nothing to add or remove")
		}
	case TypeCommentTask:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if strings.TrimSpace(a.Comment) == "" {
			return invalid(a.Type, "comment", "must not be empty")
		}
	case TypeSetDue:
		if strings.TrimSpace(a.When) == "" {
			return invalid(a.Type, "when", "must not be empty")
		}
		if len(a.IDs) == 0 && (a.First <= 0 || a.Column == "") {
			return invalid(a.Type, "targets", "ids or first+column required")
		}
	case TypeSetPoints:
		if a.Task.IsZero() {
			return invalid(a.Type, "task", "reference required")
		}
		if a.Points < 0 {
			return invalid(a.Type, "points", "must not be negative")
		}
	case TypeListTasks:
		// Column and filter are both optional.
	case TypeSearchTasks:
		if strings.TrimSpace(a.Query) == "" {
			return invalid(a.Type, "query", "must not be empty")
		}
	case TypeUndo:
		if len(a.Token) < 6 {
			return invalid(a.Type, "token", "must be at least 6 characters")
		}
	case TypeUndoLast:
	case TypeTidyBoard:
	case TypeTidyColumn:
		if a.Column == "" {
			return invalid(a.Type, "column", "must not be empty")
		}
	case TypePreview:
		if len(a.Actions) == 0 {
			return invalid(a.Type, "actions", "must contain at least one action")
		}
		for _, inner := range a.Actions {
			if err := Validate(inner); err != nil {
				return err
			}
		}
	default:
		return invalid(a.Type, "type", "unknown action type")
	}
	return nil
}

func validPriority(a Action) error {
	switch a.Priority {
	case "", PriorityLow, PriorityNormal, PriorityHigh:
		return nil
	}
	return invalid(a.Type, "priority", "must be low, normal, or high")
}

// ValidateAll validates every action in the list. The parser relies on this
// being all-or-nothing: one invalid action discards the whole line.
func ValidateAll(list []Action) error {
	for _, a := range list {
		if err := Validate(a); err != nil {
			return err
		}
	}
	return nil
}
