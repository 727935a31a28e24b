// Package metadata derives structured facts from a card's free-text
// description and labels. Derivation is pure: the same inputs (including the
// reference clock) always produce the same output, so filters and renderers
// can rely on it being stable within one board snapshot. Nothing here is ever
// persisted.
package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Token grammar embedded in card descriptions. Each token is optional and is
// stripped from the sanitized description once extracted.
var (
	pointsToken   = regexp.MustCompile(`(?i)\[(\d+)\s*pts\]`)
	startToken    = regexp.MustCompile(`(?i)\[start:\s*(\d{4}-\d{2}-\d{2})\]`)
	deliveryToken = regexp.MustCompile(`(?i)\[delivery:\s*(\d{4}-\d{2}-\d{2})\]`)
	slaToken      = regexp.MustCompile(`(?i)\[sla:\s*(\d+)\s*h\]`)
	idleToken     = regexp.MustCompile(`(?i)\[idle:\s*(\d+)\s*h\]`)
	repeatToken   = regexp.MustCompile(`(?i)\[repeat:\s*(daily|weekly|monthly)\]`)

	openPartLine = regexp.MustCompile(`(?im)^- \[ \]`)
	donePartLine = regexp.MustCompile(`(?im)^- \[x\]`)

	multiSpace    = regexp.MustCompile(`\s{2,}`)
	reviewColumn  = regexp.MustCompile(`(?i)review`)
	terminalNames = regexp.MustCompile(`(?i)done|complete|finished|closed|shipped|deployed|live`)
)

// Derived holds every fact computed from a card's raw text, labels, and
// timestamps.
type Derived struct {
	Points               *int     `json:"points"`
	Priority             string   `json:"priority,omitempty"`
	DesiredStart         string   `json:"desiredStart,omitempty"`
	DesiredDelivery      string   `json:"desiredDelivery,omitempty"`
	SLAHours             *int     `json:"slaHours"`
	IdleHours            *int     `json:"idleHours"`
	RepeatCadence        string   `json:"repeatCadence,omitempty"`
	CreatedBy            string   `json:"createdBy,omitempty"`
	Followers            []string `json:"followers,omitempty"`
	SanitizedDescription string   `json:"sanitizedDescription"`
	OpenParts            int      `json:"openParts"`
	TotalParts           int      `json:"totalParts"`
	Overdue              bool     `json:"overdue"`
	EffortExceeded       bool     `json:"effortExceeded"`
	SLAOver              bool     `json:"slaOver"`
	IdleOver             bool     `json:"idleOver"`
	AwaitingApproval     bool     `json:"awaitingApproval"`
	Recurring            bool     `json:"recurring"`
	Shared               bool     `json:"shared"`
	AllPartsDelivered    bool     `json:"allPartsDelivered"`
	MyOpenParts          bool     `json:"myOpenParts"`
}

// Context carries the per-read inputs derivation depends on. Now must be set
// by the caller; time-based flags compare against it, never against the wall
// clock directly.
type Context struct {
	Me             string
	DueDate        string
	CreatedAt      string
	Column         string
	LastActivityAt string
	Now            time.Time
}

// Derive computes card metadata from the raw description, labels, and
// assignee list.
func Derive(description string, labels, assignees []string, ctx Context) Derived {
	working := strings.TrimSpace(description)

	var points, slaHours, idleHours *int
	var desiredStart, desiredDelivery, cadence string

	working, points = stripInt(working, pointsToken)
	working, desiredStart = strip(working, startToken)
	working, desiredDelivery = strip(working, deliveryToken)
	working, slaHours = stripInt(working, slaToken)
	working, idleHours = stripInt(working, idleToken)
	working, cadence = strip(working, repeatToken)
	cadence = strings.ToLower(cadence)

	var followers []string
	for _, label := range labels {
		if strings.HasPrefix(strings.ToLower(label), "follower:") {
			if v := labelValue(label); v != "" {
				followers = append(followers, v)
			}
		}
	}

	var createdBy string
	for _, label := range labels {
		if strings.HasPrefix(strings.ToLower(label), "created-by:") {
			createdBy = labelValue(label)
			break
		}
	}

	// Checklist progress counts against the original description, not the
	// sanitized one.
	openParts := len(openPartLine.FindAllString(description, -1))
	completedParts := len(donePartLine.FindAllString(description, -1))
	totalParts := openParts + completedParts

	terminal := terminalNames.MatchString(ctx.Column)
	due := parseWhen(ctx.DueDate)
	overdue := due != nil && !terminal && due.Before(ctx.Now)

	createdAt := parseWhen(ctx.CreatedAt)
	slaOver := slaHours != nil && createdAt != nil && !terminal &&
		ctx.Now.Sub(*createdAt).Hours() > float64(*slaHours)

	lastActivity := parseWhen(ctx.LastActivityAt)
	if lastActivity == nil {
		lastActivity = createdAt
	}
	idleOver := idleHours != nil && lastActivity != nil && !terminal &&
		ctx.Now.Sub(*lastActivity).Hours() > float64(*idleHours)

	awaitingApproval := reviewColumn.MatchString(ctx.Column) || contains(labels, "awaiting-approval")

	me := strings.ToLower(strings.TrimSpace(ctx.Me))
	myOpenParts := false
	if me != "" && openParts > 0 {
		for _, a := range assignees {
			if strings.ToLower(a) == me {
				myOpenParts = true
				break
			}
		}
	}

	return Derived{
		Points:               points,
		Priority:             derivePriority(labels),
		DesiredStart:         desiredStart,
		DesiredDelivery:      desiredDelivery,
		SLAHours:             slaHours,
		IdleHours:            idleHours,
		RepeatCadence:        cadence,
		CreatedBy:            createdBy,
		Followers:            followers,
		SanitizedDescription: working,
		OpenParts:            openParts,
		TotalParts:           totalParts,
		Overdue:              overdue,
		EffortExceeded:       points != nil && openParts > *points,
		SLAOver:              slaOver,
		IdleOver:             idleOver,
		AwaitingApproval:     awaitingApproval,
		Recurring:            cadence != "",
		Shared:               contains(labels, "shared"),
		AllPartsDelivered:    totalParts > 0 && openParts == 0,
		MyOpenParts:          myOpenParts,
	}
}

// strip removes the first match of token from text, collapsing the whitespace
// left behind, and returns the captured group.
func strip(text string, token *regexp.Regexp) (string, string) {
	m := token.FindStringSubmatchIndex(text)
	if m == nil {
		return text, ""
	}
	captured := text[m[2]:m[3]]
	rest := text[:m[0]] + text[m[1]:]
	rest = strings.TrimSpace(multiSpace.ReplaceAllString(rest, " "))
	return rest, captured
}

func stripInt(text string, token *regexp.Regexp) (string, *int) {
	rest, captured := strip(text, token)
	if captured == "" {
		return rest, nil
	}
	n, err := strconv.Atoi(captured)
	if err != nil {
		return rest, nil
	}
	return rest, &n
}

// labelValue returns the part after the first colon, original case preserved.
func labelValue(label string) string {
	_, value, ok := strings.Cut(label, ":")
	if !ok {
		return ""
	}
	return value
}

func derivePriority(labels []string) string {
	for _, label := range labels {
		lower := strings.ToLower(label)
		if !strings.HasPrefix(lower, "priority-") {
			continue
		}
		switch slug := strings.TrimPrefix(lower, "priority-"); slug {
		case "urgent", "high", "medium", "low":
			return slug
		}
		return ""
	}
	return ""
}

func contains(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// parseWhen accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseWhen(value string) *time.Time {
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
