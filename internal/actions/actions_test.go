package actions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr string
	}{
		{"create ok", Action{Type: TypeCreateTask, Title: "Fix bug"}, ""},
		{"create empty title", Action{Type: TypeCreateTask, Title: "  "}, "title"},
		{"create bad priority", Action{Type: TypeCreateTask, Title: "x", Priority: "urgent"}, "priority"},
		{"move ok", Action{Type: TypeMoveTask, Task: ByID(12), Column: "Review"}, ""},
		{"move missing task", Action{Type: TypeMoveTask, Column: "Review"}, "task"},
		{"move missing column", Action{Type: TypeMoveTask, Task: ByID(12)}, "column"},
		{"update nothing to do", Action{Type: TypeUpdateTask, Task: ByID(1)}, "fields"},
		{"update ok", Action{Type: TypeUpdateTask, Task: ByID(1), Priority: PriorityHigh}, ""},
		{"assign empty", Action{Type: TypeAssignTask, Task: ByID(1), Assignee: ""}, "assignee"},
		{"tag empty", Action{Type: TypeTagTask, Task: ByID(1)}, "tags"},
		{"comment empty", Action{Type: TypeCommentTask, Task: ByID(1), Comment: " "}, "comment"},
		{"set due ids", Action{Type: TypeSetDue, When: "tomorrow", IDs: []int64{1, 2}}, ""},
		{"set due first-n", Action{Type: TypeSetDue, When: "friday", First: 3, Column: "Backlog"}, ""},
		{"set due no targets", Action{Type: TypeSetDue, When: "friday"}, "targets"},
		{"set points negative", Action{Type: TypeSetPoints, Task: ByID(1), Points: -1}, "points"},
		{"list bare", Action{Type: TypeListTasks}, ""},
		{"search empty", Action{Type: TypeSearchTasks}, "query"},
		{"undo short token", Action{Type: TypeUndo, Token: "abc"}, "token"},
		{"undo ok", Action{Type: TypeUndo, Token: "a1b2c3"}, ""},
		{"tidy column missing", Action{Type: TypeTidyColumn}, "column"},
		{"preview empty", Action{Type: TypePreview}, "actions"},
		{"preview nested invalid", Action{Type: TypePreview, Actions: []Action{{Type: TypeCreateTask}}}, "title"},
		{"unknown type", Action{Type: "explode_board"}, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.action)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestValidateAllFailsClosed(t *testing.T) {
	list := []Action{
		{Type: TypeCreateTask, Title: "ok"},
		{Type: TypeMoveTask}, // invalid
	}
	assert.Error(t, ValidateAll(list))
	assert.NoError(t, ValidateAll(list[:1]))
}

func TestTaskRefJSON(t *testing.T) {
	b, err := json.Marshal(ByID(42))
	require.NoError(t, err)
	assert.Equal(t, "42", string(b))

	b, err = json.Marshal(ByTitle("login bug"))
	require.NoError(t, err)
	assert.Equal(t, `"login bug"`, string(b))

	var ref TaskRef
	require.NoError(t, json.Unmarshal([]byte("7"), &ref))
	assert.Equal(t, int64(7), ref.ID)

	require.NoError(t, json.Unmarshal([]byte(`"auth"`), &ref))
	assert.Equal(t, "auth", ref.Title)
}
