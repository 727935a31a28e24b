package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/wordflux/boardctl/internal/actions"
	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/dateparse"
	"github.com/wordflux/boardctl/internal/filter"
	"github.com/wordflux/boardctl/internal/output"
)

// Apply executes one parsed action. It reads a board snapshot to resolve
// task and column references, then drives the primitive Invoke methods so
// every individual mutation gets its own undo record.
func (d *Dispatcher) Apply(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	if err := actions.Validate(a); err != nil {
		return nil, output.ErrUsage(err.Error())
	}

	switch a.Type {
	case actions.TypeCreateTask:
		return d.applyCreate(ctx, a, opts)
	case actions.TypeMoveTask:
		return d.applyMove(ctx, a, opts)
	case actions.TypeUpdateTask:
		return d.applyUpdate(ctx, a, opts)
	case actions.TypeAssignTask:
		return d.applyAssign(ctx, a, opts)
	case actions.TypeTagTask:
		return d.applyTag(ctx, a, opts)
	case actions.TypeCommentTask:
		return d.applyComment(ctx, a)
	case actions.TypeSetDue:
		return d.applySetDue(ctx, a, opts)
	case actions.TypeSetPoints:
		return d.applySetPoints(ctx, a, opts)
	case actions.TypeListTasks:
		return d.applyList(ctx, a)
	case actions.TypeSearchTasks:
		return d.Invoke(ctx, MethodFilterCards, map[string]any{"filter": filter.Spec{Text: a.Query}}, opts)
	case actions.TypeUndo:
		return d.Invoke(ctx, MethodUndo, map[string]any{"token": a.Token}, opts)
	case actions.TypeUndoLast:
		return d.Invoke(ctx, MethodUndoLast, nil, opts)
	case actions.TypeTidyBoard:
		return d.Invoke(ctx, MethodTidyBoard, map[string]any{"preview": a.Preview}, opts)
	case actions.TypeTidyColumn:
		return d.Invoke(ctx, MethodTidyColumn, map[string]any{"column": a.Column, "preview": a.Preview}, opts)
	case actions.TypePreview:
		return &Result{
			Data:  a.Actions,
			Label: fmt.Sprintf("Preview: %d planned action(s), nothing applied", len(a.Actions)),
		}, nil
	}
	return nil, &UnknownMethodError{Method: string(a.Type)}
}

func (d *Dispatcher) applyCreate(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	resolver := d.resolver(state)

	var col *board.Column
	if a.Column == "" {
		col = resolver.DefaultIntake()
	} else {
		col, err = resolver.Resolve(a.Column)
		if err != nil {
			return nil, output.ErrNotFound("column", a.Column)
		}
	}
	if col == nil {
		return nil, output.ErrUsage("Board has no columns")
	}

	res, err := d.Invoke(ctx, MethodCreateCard, map[string]any{
		"title":       a.Title,
		"column_id":   col.ID,
		"description": a.Description,
	}, opts)
	if err != nil {
		return nil, err
	}

	id := paramInt64(res.Data.(map[string]any), "id")
	for _, tag := range a.Tags {
		if _, err := d.Invoke(ctx, MethodAddLabel, map[string]any{"task_id": id, "label": tag}, opts); err != nil {
			d.warnf("could not tag new card #%d with %q: %v", id, tag, err)
		}
	}
	if a.Priority != "" && a.Priority != actions.PriorityNormal {
		if _, err := d.Invoke(ctx, MethodUpdateCard, map[string]any{"task_id": id, "priority": a.Priority}, opts); err != nil {
			d.warnf("could not set priority of new card #%d: %v", id, err)
		}
	}

	return &Result{
		Data:  res.Data,
		Label: fmt.Sprintf("Created %q in %s", a.Title, col.Name),
		Undo:  res.Undo,
	}, nil
}

func (d *Dispatcher) applyMove(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}
	col, err := d.resolveColumnStrict(state, a.Column)
	if err != nil {
		return nil, err
	}

	return d.Invoke(ctx, MethodMoveCard, map[string]any{
		"task_id":   card.ID,
		"column_id": col.ID,
		"position":  a.Position,
	}, opts)
}

func (d *Dispatcher) applyUpdate(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}

	params := map[string]any{"task_id": card.ID}
	if a.Title != "" {
		params["title"] = a.Title
	}
	if a.Description != "" {
		params["description"] = a.Description
	}
	if a.Priority != "" {
		params["priority"] = a.Priority
	}
	return d.Invoke(ctx, MethodUpdateCard, params, opts)
}

func (d *Dispatcher) applyAssign(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}
	return d.Invoke(ctx, MethodAssignCard, map[string]any{
		"task_id":  card.ID,
		"assignee": strings.TrimPrefix(a.Assignee, "@"),
	}, opts)
}

func (d *Dispatcher) applyTag(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, tag := range a.Add {
		if _, err := d.Invoke(ctx, MethodAddLabel, map[string]any{"task_id": card.ID, "label": tag}, opts); err != nil {
			return nil, err
		}
		applied++
	}
	for _, tag := range a.Remove {
		if _, err := d.Invoke(ctx, MethodRemoveLabel, map[string]any{"task_id": card.ID, "label": tag}, opts); err != nil {
			return nil, err
		}
		applied++
	}

	return &Result{
		Data:  map[string]any{"id": card.ID},
		Label: fmt.Sprintf("Changed %d label(s) on %q", applied, card.Title),
	}, nil
}

func (d *Dispatcher) applyComment(ctx context.Context, a actions.Action) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}
	return d.Invoke(ctx, MethodAddComment, map[string]any{"task_id": card.ID, "text": a.Comment}, Options{})
}

func (d *Dispatcher) applySetDue(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	// Validate the date once up front so a bad phrase cannot fail halfway
	// through a multi-card batch.
	if dateparse.Deadline(a.When, d.now()) == "" {
		return nil, output.ErrUsageHint(
			fmt.Sprintf("Could not understand date %q", a.When),
			"Try: tomorrow, friday, in 3 days, 2024-07-01")
	}

	ids := a.IDs
	if len(ids) == 0 {
		state, err := d.state(ctx)
		if err != nil {
			return nil, err
		}
		col, err := d.resolveColumnStrict(state, a.Column)
		if err != nil {
			return nil, err
		}
		for _, card := range col.Cards {
			if len(ids) == a.First {
				break
			}
			ids = append(ids, card.ID)
		}
	}

	updated := 0
	var failures []string
	for _, id := range ids {
		if _, err := d.Invoke(ctx, MethodSetDue, map[string]any{"task_id": id, "when": a.When}, opts); err != nil {
			failures = append(failures, fmt.Sprintf("#%d: %v", id, err))
			continue
		}
		updated++
	}

	res := &Result{
		Data:  map[string]any{"updated": updated, "failures": failures},
		Label: fmt.Sprintf("Set due %s on %d card(s)", a.When, updated),
	}
	if updated == 0 && len(failures) > 0 {
		return nil, output.ErrNotFound("card", strings.Join(failures, "; "))
	}
	return res, nil
}

func (d *Dispatcher) applySetPoints(ctx context.Context, a actions.Action, opts Options) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	card, _, err := resolveCard(state, a.Task)
	if err != nil {
		return nil, err
	}
	return d.Invoke(ctx, MethodSetPoints, map[string]any{"task_id": card.ID, "points": a.Points}, opts)
}

func (d *Dispatcher) applyList(ctx context.Context, a actions.Action) (*Result, error) {
	switch a.Filter {
	case "":
		return d.Invoke(ctx, MethodListCards, map[string]any{"column": a.Column}, Options{})
	case "blocked":
		return d.Invoke(ctx, MethodFilterCards, map[string]any{
			"filter": filter.Spec{LabelsAny: []string{"blocked", "stuck"}},
		}, Options{})
	case "overdue":
		return d.Invoke(ctx, MethodFilterCards, map[string]any{
			"filter": filter.Spec{Due: &filter.DateRange{Overdue: true}},
		}, Options{})
	case "today":
		return d.Invoke(ctx, MethodFilterCards, map[string]any{
			"filter": filter.Spec{Due: &filter.DateRange{On: d.now().Format("2006-01-02")}},
		}, Options{})
	case "mine":
		if d.me == "" {
			return nil, output.ErrUsageHint("No caller identity configured", "Set me: in the config file")
		}
		return d.Invoke(ctx, MethodFilterCards, map[string]any{
			"filter": filter.Spec{Assignees: []string{d.me}},
		}, Options{})
	}
	return nil, output.ErrUsage("Unknown filter: " + a.Filter)
}

// resolveCard finds a card by id or by fuzzy title match. A unique exact
// title match wins over substring matches; several candidates fail with an
// ambiguity error naming up to five of them.
func resolveCard(state *board.State, ref actions.TaskRef) (*board.Card, *board.Column, error) {
	if ref.ID > 0 {
		card, col := state.FindCard(ref.ID)
		if card == nil {
			return nil, nil, output.ErrNotFound("card", ref.String())
		}
		return card, col, nil
	}

	needle := strings.ToLower(strings.TrimSpace(ref.Title))
	type hit struct {
		card *board.Card
		col  *board.Column
	}
	var exact, partial []hit
	for i := range state.Columns {
		col := &state.Columns[i]
		for j := range col.Cards {
			card := &col.Cards[j]
			title := strings.ToLower(card.Title)
			if title == needle {
				exact = append(exact, hit{card, col})
			} else if strings.Contains(title, needle) {
				partial = append(partial, hit{card, col})
			}
		}
	}

	if len(exact) == 1 {
		return exact[0].card, exact[0].col, nil
	}
	candidates := append(exact, partial...)
	switch len(candidates) {
	case 0:
		return nil, nil, output.ErrNotFound("card", ref.Title)
	case 1:
		return candidates[0].card, candidates[0].col, nil
	}

	titles := make([]string, 0, 5)
	for _, h := range candidates {
		if len(titles) == 5 {
			break
		}
		titles = append(titles, fmt.Sprintf("#%d %q", h.card.ID, h.card.Title))
	}
	return nil, nil, output.ErrAmbiguous("card reference "+ref.String(), titles)
}

// resolveColumnStrict resolves a column phrase without the first-column
// fallback: an explicit target the board does not have is a user error.
func (d *Dispatcher) resolveColumnStrict(state *board.State, phrase string) (*board.Column, error) {
	col, ok := d.resolver(state).Lookup(phrase)
	if !ok {
		names := make([]string, len(state.Columns))
		for i, c := range state.Columns {
			names[i] = c.Name
		}
		return nil, output.ErrNotFoundHint("column", phrase, "Columns: "+strings.Join(names, ", "))
	}
	return col, nil
}
