// Package dispatch executes validated board actions against a provider and
// maintains the inverse-action undo stack. Every successful mutation pushes a
// record that, replayed through the same dispatcher, restores the prior state.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/columns"
	"github.com/wordflux/boardctl/internal/dateparse"
	"github.com/wordflux/boardctl/internal/filter"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/undo"
)

// Invoke method names. The wire surface of the serve bridge and the undo
// store both speak these.
const (
	MethodCreateCard  = "create_card"
	MethodMoveCard    = "move_card"
	MethodUpdateCard  = "update_card"
	MethodRemoveCard  = "remove_card"
	MethodAssignCard  = "assign_card"
	MethodAddLabel    = "add_label"
	MethodRemoveLabel = "remove_label"
	MethodAddComment  = "add_comment"
	MethodSetDue      = "set_due"
	MethodSetPoints   = "set_points"
	MethodBulkMove    = "bulk_move"
	MethodListCards   = "list_cards"
	MethodFilterCards = "filter_cards"
	MethodUndo        = "undo"
	MethodUndoLast    = "undo_last"
	MethodTidyBoard   = "tidy_board"
	MethodTidyColumn  = "tidy_column"
)

// Options modifies a single Invoke call.
type Options struct {
	// SkipUndo suppresses the undo record, so replaying an undo is not
	// itself undoable.
	SkipUndo bool
}

// Result is the outcome of one Invoke.
type Result struct {
	Data  any    `json:"data,omitempty"`
	Label string `json:"label,omitempty"`
	// Undo is the record pushed for this mutation, nil for reads and
	// skip-undo calls.
	Undo *undo.Record `json:"undo,omitempty"`
}

// UnknownMethodError reports an Invoke method name outside the dispatch
// surface.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return "unknown method: " + e.Method
}

// Dispatcher executes methods against one project's board. Calls are
// sequential from the caller's perspective; the undo store may be shared
// across dispatchers and is synchronized by its own driver.
type Dispatcher struct {
	provider  board.Provider
	store     undo.Store
	projectID int64
	me        string
	backupDir string
	synonyms  map[string]int64
	now       func() time.Time
	warnf     func(format string, args ...any)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMe sets the caller identity used by "mine" filters.
func WithMe(me string) Option {
	return func(d *Dispatcher) { d.me = me }
}

// WithBackupDir sets where tidy backups are written.
func WithBackupDir(dir string) Option {
	return func(d *Dispatcher) { d.backupDir = dir }
}

// WithSynonyms adds per-board column synonyms (phrase to column id) on top
// of the built-in vocabulary.
func WithSynonyms(synonyms map[string]int64) Option {
	return func(d *Dispatcher) { d.synonyms = synonyms }
}

// WithClock replaces the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithWarnLogger replaces the non-fatal warning sink.
func WithWarnLogger(warnf func(format string, args ...any)) Option {
	return func(d *Dispatcher) { d.warnf = warnf }
}

// New creates a dispatcher for one project. The undo store is owned by the
// caller and may outlive the dispatcher.
func New(provider board.Provider, store undo.Store, projectID int64, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider:  provider,
		store:     store,
		projectID: projectID,
		now:       time.Now,
		warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke executes one method. Mutations push an inverse record unless
// opts.SkipUndo is set; failures propagate without pushing.
func (d *Dispatcher) Invoke(ctx context.Context, method string, params map[string]any, opts Options) (*Result, error) {
	switch method {
	case MethodCreateCard:
		return d.createCard(ctx, params, opts)
	case MethodMoveCard:
		return d.moveCard(ctx, params, opts)
	case MethodUpdateCard:
		return d.updateCard(ctx, params, opts)
	case MethodRemoveCard:
		return d.removeCard(ctx, params, opts)
	case MethodAssignCard:
		return d.assignCard(ctx, params, opts)
	case MethodAddLabel:
		return d.addLabel(ctx, params, opts)
	case MethodRemoveLabel:
		return d.removeLabel(ctx, params, opts)
	case MethodAddComment:
		return d.addComment(ctx, params)
	case MethodSetDue:
		return d.setDue(ctx, params, opts)
	case MethodSetPoints:
		return d.setPoints(ctx, params, opts)
	case MethodBulkMove:
		return d.bulkMove(ctx, params, opts)
	case MethodListCards:
		return d.listCards(ctx, params)
	case MethodFilterCards:
		return d.filterCards(ctx, params)
	case MethodUndo:
		return d.undoToken(ctx, params)
	case MethodUndoLast:
		return d.undoLast(ctx)
	case MethodTidyBoard:
		return d.tidyBoard(ctx, params)
	case MethodTidyColumn:
		return d.tidyColumn(ctx, params)
	}
	return nil, &UnknownMethodError{Method: method}
}

func (d *Dispatcher) state(ctx context.Context) (*board.State, error) {
	return d.provider.GetBoardState(ctx, d.projectID)
}

// resolver builds a column resolver over a board snapshot, with the
// configured synonym overrides registered.
func (d *Dispatcher) resolver(state *board.State) *columns.Resolver {
	r := columns.NewResolver(state.Columns)
	for phrase, columnID := range d.synonyms {
		r.RegisterSynonym(phrase, columnID)
	}
	return r
}

// push records an inverse operation. A store failure cannot roll the forward
// mutation back, so it is reported and swallowed.
func (d *Dispatcher) push(method string, params map[string]any, label string, opts Options) *undo.Record {
	if opts.SkipUndo {
		return nil
	}
	rec := undo.Record{
		Token:     undo.NewToken(),
		Method:    method,
		Params:    params,
		Label:     label,
		Timestamp: d.now().UTC(),
	}
	if err := d.store.Push(rec); err != nil {
		d.warnf("could not record undo step: %v", err)
		return nil
	}
	return &rec
}

func (d *Dispatcher) createCard(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	title := paramString(params, "title")
	if title == "" {
		return nil, output.ErrUsage("Card title must not be empty")
	}
	columnID := paramInt64(params, "column_id")
	description := paramString(params, "description")

	id, err := d.provider.CreateTask(ctx, d.projectID, title, columnID, description)
	if err != nil {
		return nil, err
	}

	rec := d.push(MethodRemoveCard,
		map[string]any{"task_id": id},
		fmt.Sprintf("Remove %q (undoes create)", title),
		opts)

	return &Result{
		Data:  map[string]any{"id": id, "title": title, "column_id": columnID},
		Label: fmt.Sprintf("Created %q", title),
		Undo:  rec,
	}, nil
}

func (d *Dispatcher) moveCard(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	taskID := paramInt64(params, "task_id")
	columnID := paramInt64(params, "column_id")
	pos := paramInt(params, "position")

	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, from := state.FindCard(taskID)
	if card == nil {
		return nil, output.ErrNotFound("card", fmt.Sprintf("#%d", taskID))
	}
	target := state.FindColumn(columnID)
	if target == nil {
		return nil, output.ErrNotFound("column", fmt.Sprintf("%d", columnID))
	}
	if pos <= 0 {
		pos = len(target.Cards) + 1
	}

	if err := d.provider.MoveTask(ctx, d.projectID, taskID, columnID, pos); err != nil {
		return nil, err
	}

	rec := d.push(MethodMoveCard,
		map[string]any{"task_id": taskID, "column_id": from.ID, "position": card.Position},
		fmt.Sprintf("Move %q back to %s (position %d)", card.Title, from.Name, card.Position),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID, "column": target.Name, "position": pos},
		Label: fmt.Sprintf("Moved %q to %s", card.Title, target.Name),
		Undo:  rec,
	}, nil
}

// updateFields lists the patchable card fields in a stable order.
var updateFields = []string{"title", "description", "due_date", "priority", "points"}

func (d *Dispatcher) updateCard(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	taskID := paramInt64(params, "task_id")

	caps := d.provider.Capabilities()
	if paramHasKey(params, "priority") && !caps.Priority {
		return nil, output.ErrUnsupported("priority updates")
	}
	if paramHasKey(params, "points") && !caps.Points {
		return nil, output.ErrUnsupported("point updates")
	}
	if paramHasKey(params, "due_date") && !caps.DueDates {
		return nil, output.ErrUnsupported("due dates")
	}

	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _ := state.FindCard(taskID)
	if card == nil {
		return nil, output.ErrNotFound("card", fmt.Sprintf("#%d", taskID))
	}

	var patch board.TaskPatch
	inverse := map[string]any{"task_id": taskID}
	touched := false
	for _, field := range updateFields {
		if !paramHasKey(params, field) {
			continue
		}
		touched = true
		switch field {
		case "title":
			v := paramString(params, field)
			patch.Title = &v
			inverse[field] = card.Title
		case "description":
			v := paramString(params, field)
			patch.Description = &v
			inverse[field] = card.Description
		case "due_date":
			v := paramString(params, field)
			patch.DueDate = &v
			inverse[field] = card.DueDate
		case "priority":
			v := paramString(params, field)
			patch.Priority = &v
			inverse[field] = card.Priority
		case "points":
			v := paramInt(params, field)
			patch.Points = &v
			inverse[field] = card.Points
		}
	}
	if !touched {
		return nil, output.ErrUsage("Nothing to update")
	}

	if err := d.provider.UpdateTask(ctx, d.projectID, taskID, patch); err != nil {
		return nil, err
	}

	rec := d.push(MethodUpdateCard, inverse,
		fmt.Sprintf("Restore previous fields of %q", card.Title),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID},
		Label: fmt.Sprintf("Updated %q", card.Title),
		Undo:  rec,
	}, nil
}

func (d *Dispatcher) removeCard(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	if !d.provider.Capabilities().Remove {
		return nil, output.ErrUnsupported("card removal")
	}
	taskID := paramInt64(params, "task_id")

	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, col := state.FindCard(taskID)
	if card == nil {
		return nil, output.ErrNotFound("card", fmt.Sprintf("#%d", taskID))
	}

	if err := d.provider.RemoveTask(ctx, taskID); err != nil {
		return nil, err
	}

	rec := d.push(MethodCreateCard,
		map[string]any{"title": card.Title, "column_id": col.ID, "description": card.Description},
		fmt.Sprintf("Recreate %q in %s", card.Title, col.Name),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID},
		Label: fmt.Sprintf("Removed %q", card.Title),
		Undo:  rec,
	}, nil
}

func (d *Dispatcher) assignCard(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	if !d.provider.Capabilities().Assign {
		return nil, output.ErrUnsupported("assignment")
	}
	taskID := paramInt64(params, "task_id")
	assignee := paramString(params, "assignee")

	// Replaying an inverse with no prior assignee is a no-op.
	if assignee == "" {
		return &Result{Label: "No assignee to restore"}, nil
	}

	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _ := state.FindCard(taskID)
	if card == nil {
		return nil, output.ErrNotFound("card", fmt.Sprintf("#%d", taskID))
	}
	prior := ""
	if len(card.Assignees) > 0 {
		prior = card.Assignees[0]
	}

	if err := d.provider.AssignTask(ctx, taskID, assignee); err != nil {
		return nil, err
	}

	rec := d.push(MethodAssignCard,
		map[string]any{"task_id": taskID, "assignee": prior},
		fmt.Sprintf("Restore assignee of %q", card.Title),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID, "assignee": assignee},
		Label: fmt.Sprintf("Assigned %q to %s", card.Title, assignee),
		Undo:  rec,
	}, nil
}

func (d *Dispatcher) addLabel(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	if !d.provider.Capabilities().Labels {
		return nil, output.ErrUnsupported("labels")
	}
	taskID := paramInt64(params, "task_id")
	label := paramString(params, "label")
	if label == "" {
		return nil, output.ErrUsage("Label must not be empty")
	}

	if err := d.provider.AddTaskLabel(ctx, taskID, label); err != nil {
		return nil, err
	}

	rec := d.push(MethodRemoveLabel,
		map[string]any{"task_id": taskID, "label": label},
		fmt.Sprintf("Remove label %q from #%d", label, taskID),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID, "label": label},
		Label: fmt.Sprintf("Labeled #%d with %q", taskID, label),
		Undo:  rec,
	}, nil
}

func (d *Dispatcher) removeLabel(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	if !d.provider.Capabilities().Labels {
		return nil, output.ErrUnsupported("labels")
	}
	taskID := paramInt64(params, "task_id")
	label := paramString(params, "label")

	if err := d.provider.RemoveTaskLabel(ctx, taskID, label); err != nil {
		return nil, err
	}

	rec := d.push(MethodAddLabel,
		map[string]any{"task_id": taskID, "label": label},
		fmt.Sprintf("Re-add label %q to #%d", label, taskID),
		opts)

	return &Result{
		Data:  map[string]any{"id": taskID, "label": label},
		Label: fmt.Sprintf("Removed label %q from #%d", label, taskID),
		Undo:  rec,
	}, nil
}

// addComment is a forward-only mutation: providers expose no comment
// deletion, so no undo record is pushed.
func (d *Dispatcher) addComment(ctx context.Context, params map[string]any) (*Result, error) {
	if !d.provider.Capabilities().Comments {
		return nil, output.ErrUnsupported("comments")
	}
	taskID := paramInt64(params, "task_id")
	text := paramString(params, "text")
	if text == "" {
		return nil, output.ErrUsage("Comment must not be empty")
	}

	commentID, err := d.provider.AddComment(ctx, taskID, text)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:  map[string]any{"id": taskID, "comment_id": commentID},
		Label: fmt.Sprintf("Commented on #%d", taskID),
	}, nil
}

func (d *Dispatcher) setDue(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	taskID := paramInt64(params, "task_id")

	due := paramString(params, "due")
	if due == "" {
		when := paramString(params, "when")
		due = dateparse.Deadline(when, d.now())
		if due == "" {
			return nil, output.ErrUsageHint(
				fmt.Sprintf("Could not understand date %q", when),
				"Try: tomorrow, friday, in 3 days, 2024-07-01")
		}
	}

	return d.updateCard(ctx, map[string]any{"task_id": taskID, "due_date": due}, opts)
}

func (d *Dispatcher) setPoints(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	taskID := paramInt64(params, "task_id")
	points := paramInt(params, "points")
	if points < 0 {
		return nil, output.ErrUsage("Points must not be negative")
	}
	return d.updateCard(ctx, map[string]any{"task_id": taskID, "points": points}, opts)
}

// BulkItem is the per-card outcome of a bulk_move.
type BulkItem struct {
	ID    int64  `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// bulkMove moves many cards to one column. Failures are isolated per card;
// every successful move still gets its own undo record.
func (d *Dispatcher) bulkMove(ctx context.Context, params map[string]any, opts Options) (*Result, error) {
	ids := paramInt64s(params, "task_ids")
	if len(ids) == 0 {
		return nil, output.ErrUsage("No task ids given")
	}
	columnID := paramInt64(params, "column_id")

	items := make([]BulkItem, 0, len(ids))
	moved := 0
	for _, id := range ids {
		_, err := d.Invoke(ctx, MethodMoveCard, map[string]any{"task_id": id, "column_id": columnID}, opts)
		item := BulkItem{ID: id, OK: err == nil}
		if err != nil {
			item.Error = err.Error()
		} else {
			moved++
		}
		items = append(items, item)
	}

	return &Result{
		Data:  items,
		Label: fmt.Sprintf("Moved %d of %d cards", moved, len(ids)),
	}, nil
}

func (d *Dispatcher) listCards(ctx context.Context, params map[string]any) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}

	column := paramString(params, "column")
	if column == "" {
		return &Result{Data: state.Columns, Label: "Board"}, nil
	}

	col, ok := d.resolver(state).Lookup(column)
	if !ok {
		return nil, output.ErrNotFound("column", column)
	}
	return &Result{Data: []board.Column{*col}, Label: col.Name}, nil
}

func (d *Dispatcher) filterCards(ctx context.Context, params map[string]any) (*Result, error) {
	spec, err := specFromParams(params)
	if err != nil {
		return nil, output.ErrUsage("Invalid filter: " + err.Error())
	}

	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}

	result := filter.Evaluate(state, spec, filter.Options{Me: d.me, Now: d.now()})
	return &Result{
		Data:  result,
		Label: fmt.Sprintf("%d matching cards", len(result.Matches)),
	}, nil
}

func (d *Dispatcher) undoToken(ctx context.Context, params map[string]any) (*Result, error) {
	token := paramString(params, "token")
	rec, ok, err := d.store.Take(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, output.ErrNotFound("undo record", token)
	}
	return d.replay(ctx, rec)
}

func (d *Dispatcher) undoLast(ctx context.Context) (*Result, error) {
	rec, ok, err := d.store.Pop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, output.ErrUndoEmpty()
	}
	return d.replay(ctx, rec)
}

// replay re-invokes a stored inverse with SkipUndo, so undoing is not itself
// undoable. Single-level undo, not a redo stack.
func (d *Dispatcher) replay(ctx context.Context, rec undo.Record) (*Result, error) {
	res, err := d.Invoke(ctx, rec.Method, rec.Params, Options{SkipUndo: true})
	if err != nil {
		return nil, err
	}
	label := rec.Label
	if label == "" {
		label = rec.Method
	}
	return &Result{Data: res.Data, Label: "Undid: " + label}, nil
}
