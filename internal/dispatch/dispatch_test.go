package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflux/boardctl/internal/actions"
	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/provider"
	"github.com/wordflux/boardctl/internal/undo"
)

var testClock = func() time.Time {
	return time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *provider.Memory) {
	t.Helper()
	mem := provider.NewMemory(1, "Backlog", "In Progress", "Done")
	mem.SetClock(testClock)
	store := undo.NewFileStore(t.TempDir(), 50)
	d := New(mem, store, 1,
		WithMe("alice"),
		WithBackupDir(t.TempDir()),
		WithClock(testClock),
		WithWarnLogger(func(string, ...any) {}),
	)
	return d, mem
}

func seed(t *testing.T, mem *provider.Memory, column int64, titles ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		id, err := mem.CreateTask(context.Background(), 1, title, column, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func snapshot(t *testing.T, mem *provider.Memory) *board.State {
	t.Helper()
	state, err := mem.GetBoardState(context.Background(), 1)
	require.NoError(t, err)
	return state
}

func TestCreateThenUndoRestoresBoard(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	before := snapshot(t, mem)

	res, err := d.Apply(ctx, actions.Action{
		Type:   actions.TypeCreateTask,
		Title:  "New card",
		Column: "backlog",
	}, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Undo)
	assert.Equal(t, MethodRemoveCard, res.Undo.Method)

	require.Len(t, snapshot(t, mem).Columns[0].Cards, 1)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(before, snapshot(t, mem)), "undo must restore the pre-create snapshot")
}

func TestMoveThenUndoRestoresColumnAndPosition(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "a", "b", "c")
	before := snapshot(t, mem)

	_, err := d.Apply(ctx, actions.Action{
		Type:   actions.TypeMoveTask,
		Task:   actions.ByID(ids[1]),
		Column: "done",
	}, Options{})
	require.NoError(t, err)

	mid := snapshot(t, mem)
	assert.Len(t, mid.Columns[0].Cards, 2)
	assert.Len(t, mid.Columns[2].Cards, 1)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)

	after := snapshot(t, mem)
	require.Len(t, after.Columns[0].Cards, 3)
	assert.Equal(t, "b", after.Columns[0].Cards[1].Title)
	assert.Equal(t, 2, after.Columns[0].Cards[1].Position)
	assert.True(t, reflect.DeepEqual(before.Columns, after.Columns))
}

func TestUpdateThenUndoRestoresFields(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "Original")

	_, err := d.Invoke(ctx, MethodUpdateCard, map[string]any{
		"task_id":  ids[0],
		"title":    "Renamed",
		"priority": "high",
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", snapshot(t, mem).Columns[0].Cards[0].Title)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)
	card := snapshot(t, mem).Columns[0].Cards[0]
	assert.Equal(t, "Original", card.Title)
	assert.Empty(t, card.Priority)
}

func TestRemoveThenUndoRecreates(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "Keep me")

	_, err := d.Invoke(ctx, MethodRemoveCard, map[string]any{"task_id": ids[0]}, Options{})
	require.NoError(t, err)
	assert.Empty(t, snapshot(t, mem).Columns[0].Cards)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)
	cards := snapshot(t, mem).Columns[0].Cards
	require.Len(t, cards, 1)
	assert.Equal(t, "Keep me", cards[0].Title)
}

func TestUndoIsNotUndoable(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, mem, 1, "Only card")

	_, err := d.Invoke(ctx, MethodAddLabel, map[string]any{"task_id": int64(1), "label": "x"}, Options{})
	require.NoError(t, err)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)

	// The replayed inverse was not re-pushed: the stack is empty again.
	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.Error(t, err)
	assert.Equal(t, output.CodeUndoEmpty, output.AsError(err).Code)
}

func TestUndoByToken(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "a", "b")

	res1, err := d.Invoke(ctx, MethodAddLabel, map[string]any{"task_id": ids[0], "label": "one"}, Options{})
	require.NoError(t, err)
	_, err = d.Invoke(ctx, MethodAddLabel, map[string]any{"task_id": ids[1], "label": "two"}, Options{})
	require.NoError(t, err)

	// Undo the older mutation by token, leaving the newer one in place.
	_, err = d.Invoke(ctx, MethodUndo, map[string]any{"token": res1.Undo.Token}, Options{})
	require.NoError(t, err)

	state := snapshot(t, mem)
	assert.Empty(t, state.Columns[0].Cards[0].Labels)
	assert.Equal(t, []string{"two"}, state.Columns[0].Cards[1].Labels)
}

func TestTidyPreviewLeavesBoardUntouched(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, mem, 3, "", "fix   login  bug", "duplicate card", "duplicate card")
	before := snapshot(t, mem)

	res, err := d.Invoke(ctx, MethodTidyBoard, map[string]any{"preview": true}, Options{})
	require.NoError(t, err)

	report := res.Data.(TidyReport)
	assert.True(t, report.Preview)
	assert.NotEmpty(t, report.Ops)
	assert.Zero(t, report.Applied)
	assert.True(t, reflect.DeepEqual(before, snapshot(t, mem)), "preview must not mutate the board")
}

func TestTidyAppliesPlanWithBackup(t *testing.T) {
	backups := t.TempDir()
	mem := provider.NewMemory(1, "Backlog", "In Progress", "Done")
	mem.SetClock(testClock)
	d := New(mem, undo.NewFileStore(t.TempDir(), 50), 1,
		WithBackupDir(backups), WithClock(testClock))
	ctx := context.Background()
	seed(t, mem, 3, "", "fix   login  bug", "Duplicate Card", "duplicate card")

	res, err := d.Invoke(ctx, MethodTidyBoard, nil, Options{})
	require.NoError(t, err)
	report := res.Data.(TidyReport)
	assert.Equal(t, len(report.Ops), report.Applied)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.Backup)

	entries, err := os.ReadDir(backups)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "board-20240612-120000.json", entries[0].Name())
	assert.Equal(t, filepath.Join(backups, entries[0].Name()), report.Backup)

	state := snapshot(t, mem)
	// Untitled card moved to the intake column.
	require.Len(t, state.Columns[0].Cards, 1)
	assert.Empty(t, state.Columns[0].Cards[0].Title)

	byTitle := map[string]board.Card{}
	for _, card := range state.Columns[2].Cards {
		byTitle[card.Title] = card
	}
	assert.Contains(t, byTitle, "Fix Login Bug")
	// The later duplicate carries the flag label.
	var flagged int
	for _, card := range state.Columns[2].Cards {
		for _, l := range card.Labels {
			if l == "duplicate" {
				flagged++
			}
		}
	}
	assert.Equal(t, 1, flagged)
}

func TestTidyOpsAreIndividuallyUndoable(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, mem, 1, "lower title")

	res, err := d.Invoke(ctx, MethodTidyBoard, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Data.(TidyReport).Applied)
	assert.Equal(t, "Lower Title", snapshot(t, mem).Columns[0].Cards[0].Title)

	_, err = d.Invoke(ctx, MethodUndoLast, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "lower title", snapshot(t, mem).Columns[0].Cards[0].Title)
}

func TestSetDueFirstNInColumn(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, mem, 1, "a", "b", "c")

	_, err := d.Apply(ctx, actions.Action{
		Type:   actions.TypeSetDue,
		When:   "tomorrow",
		First:  2,
		Column: "backlog",
	}, Options{})
	require.NoError(t, err)

	cards := snapshot(t, mem).Columns[0].Cards
	assert.Equal(t, "2024-06-13T17:00:00", cards[0].DueDate)
	assert.Equal(t, "2024-06-13T17:00:00", cards[1].DueDate)
	assert.Empty(t, cards[2].DueDate)
}

func TestSetDueRejectsUnparseableDate(t *testing.T) {
	d, mem := newTestDispatcher(t)
	seed(t, mem, 1, "a")

	_, err := d.Apply(context.Background(), actions.Action{
		Type: actions.TypeSetDue,
		When: "whenever you feel like it",
		IDs:  []int64{1},
	}, Options{})
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestBulkMoveIsolatesFailures(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "a")

	res, err := d.Invoke(ctx, MethodBulkMove, map[string]any{
		"task_ids":  []int64{ids[0], 999},
		"column_id": int64(3),
	}, Options{})
	require.NoError(t, err)

	items := res.Data.([]BulkItem)
	require.Len(t, items, 2)
	assert.True(t, items[0].OK)
	assert.False(t, items[1].OK)
	assert.NotEmpty(t, items[1].Error)
	assert.Len(t, snapshot(t, mem).Columns[2].Cards, 1)
}

func TestAmbiguousTitleReference(t *testing.T) {
	d, mem := newTestDispatcher(t)
	seed(t, mem, 1, "Login fix for web", "Login fix for mobile")

	_, err := d.Apply(context.Background(), actions.Action{
		Type:   actions.TypeMoveTask,
		Task:   actions.ByTitle("login fix"),
		Column: "done",
	}, Options{})
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeAmbiguous, e.Code)
	assert.Contains(t, e.Hint, "Login fix for web")
}

func TestExactTitleMatchBeatsSubstring(t *testing.T) {
	d, mem := newTestDispatcher(t)
	seed(t, mem, 1, "Deploy", "Deploy staging")

	_, err := d.Apply(context.Background(), actions.Action{
		Type:   actions.TypeMoveTask,
		Task:   actions.ByTitle("deploy"),
		Column: "done",
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Deploy", snapshot(t, mem).Columns[2].Cards[0].Title)
}

func TestMoveToUnknownColumnListsAvailable(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ids := seed(t, mem, 1, "a")

	_, err := d.Apply(context.Background(), actions.Action{
		Type:   actions.TypeMoveTask,
		Task:   actions.ByID(ids[0]),
		Column: "the moon",
	}, Options{})
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeNotFound, e.Code)
	assert.Contains(t, e.Hint, "Backlog")
}

func TestUnknownMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Invoke(context.Background(), "frobnicate", nil, Options{})
	require.Error(t, err)
	var unknown *UnknownMethodError
	assert.True(t, errors.As(err, &unknown))
	assert.Equal(t, "frobnicate", unknown.Method)
}

// capsProvider narrows the advertised capability set of the in-memory board.
type capsProvider struct {
	*provider.Memory
	caps board.Capabilities
}

func (p *capsProvider) Capabilities() board.Capabilities { return p.caps }

func TestCapabilityGates(t *testing.T) {
	mem := provider.NewMemory(1, "Backlog", "Done")
	mem.SetClock(testClock)
	limited := &capsProvider{Memory: mem, caps: board.Capabilities{}}
	d := New(limited, undo.NewFileStore(t.TempDir(), 50), 1, WithClock(testClock))
	ctx := context.Background()
	ids := seed(t, mem, 1, "a")

	for _, tc := range []struct {
		name   string
		method string
		params map[string]any
	}{
		{"remove", MethodRemoveCard, map[string]any{"task_id": ids[0]}},
		{"assign", MethodAssignCard, map[string]any{"task_id": ids[0], "assignee": "bob"}},
		{"label", MethodAddLabel, map[string]any{"task_id": ids[0], "label": "x"}},
		{"comment", MethodAddComment, map[string]any{"task_id": ids[0], "text": "hi"}},
		{"priority", MethodUpdateCard, map[string]any{"task_id": ids[0], "priority": "high"}},
		{"points", MethodSetPoints, map[string]any{"task_id": ids[0], "points": 3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Invoke(ctx, tc.method, tc.params, Options{})
			require.Error(t, err)
			assert.Equal(t, output.CodeUnsupported, output.AsError(err).Code)
		})
	}
}

func TestListAndFilterVocabulary(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ctx := context.Background()
	ids := seed(t, mem, 1, "Mine", "Theirs")
	require.NoError(t, mem.AssignTask(ctx, ids[0], "alice"))
	due := "2024-06-01"
	require.NoError(t, mem.UpdateTask(ctx, 1, ids[1], board.TaskPatch{DueDate: &due}))

	res, err := d.Apply(ctx, actions.Action{Type: actions.TypeListTasks, Filter: "mine"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Label, "1 matching")

	res, err = d.Apply(ctx, actions.Action{Type: actions.TypeListTasks, Filter: "overdue"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Label, "1 matching")

	res, err = d.Apply(ctx, actions.Action{Type: actions.TypeSearchTasks, Query: "theirs"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Label, "1 matching")

	res, err = d.Apply(ctx, actions.Action{Type: actions.TypeListTasks, Column: "backlog"}, Options{})
	require.NoError(t, err)
	cols := res.Data.([]board.Column)
	require.Len(t, cols, 1)
	assert.Equal(t, "Backlog", cols[0].Name)
}

func TestPreviewActionExecutesNothing(t *testing.T) {
	d, mem := newTestDispatcher(t)
	ids := seed(t, mem, 1, "a")
	before := snapshot(t, mem)

	res, err := d.Apply(context.Background(), actions.Action{
		Type: actions.TypePreview,
		Actions: []actions.Action{
			{Type: actions.TypeMoveTask, Task: actions.ByID(ids[0]), Column: "done"},
		},
	}, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Label, "nothing applied")
	assert.True(t, reflect.DeepEqual(before, snapshot(t, mem)))
}
