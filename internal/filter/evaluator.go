package filter

import (
	"strings"
	"time"

	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/metadata"
)

// AnnotatedCard is a board card with its derived metadata and match flag.
type AnnotatedCard struct {
	board.Card
	Derived metadata.Derived `json:"derived"`
	Matched bool             `json:"matched"`
}

// AnnotatedColumn mirrors a board column with annotated cards.
type AnnotatedColumn struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Position int             `json:"position"`
	Cards    []AnnotatedCard `json:"cards"`
}

// Match identifies one matching card.
type Match struct {
	ColumnID int64 `json:"columnId"`
	CardID   int64 `json:"cardId"`
}

// Result is the evaluator output: every column annotated, plus the flat
// match list.
type Result struct {
	Columns []AnnotatedColumn `json:"columns"`
	Matches []Match           `json:"matches"`
}

// Options carries the per-evaluation inputs derivation depends on.
type Options struct {
	Me  string
	Now time.Time
}

// Evaluate runs the spec against a board snapshot. A card matches iff every
// specified predicate holds.
func Evaluate(state *board.State, spec Spec, opts Options) Result {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	res := Result{Columns: make([]AnnotatedColumn, 0, len(state.Columns))}
	dropNonMatching := spec.IncludeSubtasks != nil && !*spec.IncludeSubtasks

	for _, col := range state.Columns {
		out := AnnotatedColumn{ID: col.ID, Name: col.Name, Position: col.Position}
		for _, card := range col.Cards {
			derived := metadata.Derive(card.Description, card.Labels, card.Assignees, metadata.Context{
				Me:             opts.Me,
				DueDate:        card.DueDate,
				CreatedAt:      card.CreatedAt,
				LastActivityAt: card.LastActivityAt,
				Column:         col.Name,
				Now:            opts.Now,
			})

			matched := matchesSpec(card, derived, col.Name, spec, opts.Now)
			if matched {
				res.Matches = append(res.Matches, Match{ColumnID: col.ID, CardID: card.ID})
			} else if dropNonMatching {
				continue
			}
			out.Cards = append(out.Cards, AnnotatedCard{Card: card, Derived: derived, Matched: matched})
		}
		res.Columns = append(res.Columns, out)
	}

	return res
}

func matchesSpec(card board.Card, derived metadata.Derived, columnName string, spec Spec, now time.Time) bool {
	labels := lowerAll(card.Labels)

	if spec.Text != "" {
		text := strings.ToLower(card.Title + " " + card.Description)
		if !strings.Contains(text, strings.ToLower(spec.Text)) {
			return false
		}
	}

	if len(spec.IDs) > 0 && !containsID(spec.IDs, card.ID) {
		return false
	}

	if len(spec.Columns) > 0 && !containsFold(spec.Columns, columnName) {
		return false
	}

	if len(spec.Assignees) > 0 {
		assignees := lowerAll(card.Assignees)
		for _, want := range spec.Assignees {
			needle := strings.TrimPrefix(strings.ToLower(want), "@")
			if !anyContains(assignees, needle) {
				return false
			}
		}
	}

	if len(spec.LabelsAny) > 0 && !includesAny(labels, spec.LabelsAny) {
		return false
	}
	if len(spec.LabelsAll) > 0 && !includesAll(labels, spec.LabelsAll) {
		return false
	}

	if !hasPrefixed(labels, "client:", spec.Clients) {
		return false
	}
	if !hasPrefixed(labels, "project:", spec.Projects) {
		return false
	}
	if !hasPrefixed(labels, "team:", spec.Teams) {
		return false
	}
	if !hasPrefixed(labels, "type:", spec.Types) {
		return false
	}

	if len(spec.CreatedBy) > 0 {
		creator := strings.ToLower(derived.CreatedBy)
		if creator == "" || !containsFold(spec.CreatedBy, creator) {
			return false
		}
	}

	if len(spec.Followers) > 0 {
		followers := make(map[string]bool, len(derived.Followers))
		for _, f := range derived.Followers {
			followers[strings.ToLower(f)] = true
		}
		for _, want := range spec.Followers {
			if !followers[strings.ToLower(want)] {
				return false
			}
		}
	}

	if !matchesDateRange(card.DueDate, spec.Due, now) {
		return false
	}
	if !matchesDateRange(derived.DesiredStart, spec.DesiredStart, now) {
		return false
	}

	if spec.Priority != "" && derived.Priority != spec.Priority {
		return false
	}

	if !withinPoints(derived.Points, spec.Points) {
		return false
	}

	if spec.Reopened && !contains(labels, "reopened") {
		return false
	}
	if spec.Shared && !derived.Shared {
		return false
	}
	if spec.Recurring && !derived.Recurring {
		return false
	}
	if spec.AwaitingApproval && !derived.AwaitingApproval {
		return false
	}
	if spec.MyOpenParts && derived.OpenParts == 0 {
		return false
	}
	if spec.EffortExceeded && !derived.EffortExceeded {
		return false
	}
	if spec.SLAOver && !derived.SLAOver {
		return false
	}
	if spec.IdleOver != nil && !derived.IdleOver {
		return false
	}

	return true
}

func matchesDateRange(date string, r *DateRange, now time.Time) bool {
	if r == nil {
		return true
	}
	target := parseDate(date)

	if r.Overdue && (target == nil || !target.Before(now)) {
		return false
	}
	if r.On != "" && (target == nil || target.Format("2006-01-02") != r.On) {
		return false
	}
	if r.Before != "" {
		if before := parseDate(r.Before); before != nil && target != nil && target.After(*before) {
			return false
		}
	}
	if r.After != "" {
		if after := parseDate(r.After); after != nil && target != nil && target.Before(*after) {
			return false
		}
	}
	if r.WithinHrs != nil {
		if target == nil {
			return false
		}
		diff := target.Sub(now).Hours()
		if diff < 0 || diff > *r.WithinHrs {
			return false
		}
	}
	return true
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}

func withinPoints(points *int, bounds *PointBounds) bool {
	if bounds == nil {
		return true
	}
	if bounds.GTE != nil && (points == nil || *points < *bounds.GTE) {
		return false
	}
	if bounds.LTE != nil && points != nil && *points > *bounds.LTE {
		return false
	}
	return true
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func anyContains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// includesAny reports whether at least one needle appears in the haystack.
func includesAny(haystack, needles []string) bool {
	for _, n := range needles {
		if contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// includesAll reports whether every needle appears in the haystack.
func includesAll(haystack, needles []string) bool {
	for _, n := range needles {
		if !contains(haystack, strings.ToLower(n)) {
			return false
		}
	}
	return true
}

// hasPrefixed checks the all-of prefix facet: every requested value must
// exist as a "prefix:value" label.
func hasPrefixed(labels []string, prefix string, values []string) bool {
	if len(values) == 0 {
		return true
	}
	extracted := make(map[string]bool)
	for _, l := range labels {
		if strings.HasPrefix(l, prefix) {
			extracted[strings.TrimPrefix(l, prefix)] = true
		}
	}
	for _, v := range values {
		if !extracted[strings.ToLower(v)] {
			return false
		}
	}
	return true
}
