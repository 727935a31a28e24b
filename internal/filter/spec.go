// Package filter defines the structured card query model and its evaluator.
// Every constraint on a Spec is conjunctive; an unset field imposes no
// constraint at all (open-world filtering).
package filter

// DateRange constrains a date field. Before and After are inclusive; On
// compares calendar dates; Overdue means strictly before now; WithinHrs
// keeps cards whose deadline is between now and now+N hours.
type DateRange struct {
	Before    string   `json:"before,omitempty"`
	After     string   `json:"after,omitempty"`
	On        string   `json:"on,omitempty"`
	Overdue   bool     `json:"overdue,omitempty"`
	WithinHrs *float64 `json:"withinHrs,omitempty"`
}

// PointBounds constrains derived story points.
type PointBounds struct {
	GTE *int `json:"gte,omitempty"`
	LTE *int `json:"lte,omitempty"`
}

// IdleOver requests cards whose declared idle budget has been exceeded.
type IdleOver struct {
	Hours int `json:"hours"`
}

// Spec is a structured card query.
type Spec struct {
	Text      string   `json:"text,omitempty"`
	IDs       []int64  `json:"ids,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
	LabelsAny []string `json:"labelsAny,omitempty"`
	LabelsAll []string `json:"labelsAll,omitempty"`

	// Prefixed label facets, all-of semantics: every requested value must
	// appear as a "prefix:value" label.
	Clients  []string `json:"clients,omitempty"`
	Projects []string `json:"projects,omitempty"`
	Teams    []string `json:"teams,omitempty"`
	Types    []string `json:"types,omitempty"`

	CreatedBy []string `json:"createdBy,omitempty"`
	Followers []string `json:"followers,omitempty"`

	Due          *DateRange `json:"due,omitempty"`
	DesiredStart *DateRange `json:"desiredStart,omitempty"`

	Priority string       `json:"priority,omitempty"`
	Points   *PointBounds `json:"points,omitempty"`

	Reopened         bool      `json:"reopened,omitempty"`
	Shared           bool      `json:"shared,omitempty"`
	Recurring        bool      `json:"recurring,omitempty"`
	AwaitingApproval bool      `json:"awaitingApproval,omitempty"`
	MyOpenParts      bool      `json:"myOpenParts,omitempty"`
	EffortExceeded   bool      `json:"effortExceeded,omitempty"`
	SLAOver          bool      `json:"slaOver,omitempty"`
	IdleOver         *IdleOver `json:"idleOver,omitempty"`

	// IncludeSubtasks defaults to true. When explicitly false, non-matching
	// cards are dropped from the returned columns entirely.
	IncludeSubtasks *bool `json:"includeSubtasks,omitempty"`
}
