// Package parser turns free-form chat instructions, in English or Portuguese,
// into validated board actions. Parsing is deterministic: an ordered rule
// table is tried top to bottom and the first rule that matches wins. A line
// no rule recognizes parses to zero actions, never to an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wordflux/boardctl/internal/actions"
	"github.com/wordflux/boardctl/internal/columns"
)

var (
	smartDoubles = strings.NewReplacer("“", `"`, "”", `"`)
	smartSingles = strings.NewReplacer("‘", "'", "’", "'")

	leadingPunct  = regexp.MustCompile(`^[.。!?]+`)
	trailingPunct = regexp.MustCompile(`[.。!?]+$`)
	trailingSep   = regexp.MustCompile(`[,;]\s*$`)
	whitespace    = regexp.MustCompile(`\s+`)

	quotedText = regexp.MustCompile(`["']([^"']+)["']`)
	taskIDRef  = regexp.MustCompile(`#?(\d+)\b`)
	allIDs     = regexp.MustCompile(`#?(\d+)`)
	inlineTag  = regexp.MustCompile(`\s+#(\w+)`)
	highWords  = regexp.MustCompile(`(?i)\b(urgent|high\s*priority|critical)\b`)
)

// Parser converts one instruction line into actions, resolving column
// phrases against the live board where possible.
type Parser struct {
	resolver *columns.Resolver
	rules    []rule
}

// rule is one entry of the ordered rule table.
type rule struct {
	name  string
	apply func(p *Parser, in *input) []actions.Action
}

// input carries the pre-processed instruction through the rule table.
type input struct {
	body   string   // cleaned, lowercased
	quoted []string // quoted spans with original case preserved
}

// New creates a parser bound to a column resolver.
func New(resolver *columns.Resolver) *Parser {
	return &Parser{resolver: resolver, rules: ruleTable}
}

// Parse converts an instruction into zero or more actions. Every returned
// list passes validation; a line that assembles an invalid action is
// discarded wholesale.
func (p *Parser) Parse(msg string) []actions.Action {
	cleaned := clean(msg)

	in := &input{}
	for _, m := range quotedText.FindAllStringSubmatch(cleaned, -1) {
		in.quoted = append(in.quoted, m[1])
	}

	in.body = strings.TrimSpace(strings.ToLower(cleaned))

	preview := strings.HasPrefix(in.body, "preview:")
	if preview {
		in.body = strings.TrimSpace(strings.TrimPrefix(in.body, "preview:"))
	}

	var out []actions.Action
	for _, r := range p.rules {
		if out = r.apply(p, in); len(out) > 0 {
			break
		}
	}

	if len(out) == 0 {
		return nil
	}
	if preview {
		out = []actions.Action{{Type: actions.TypePreview, Actions: out}}
	}
	if err := actions.ValidateAll(out); err != nil {
		return nil
	}
	return out
}

func clean(msg string) string {
	s := strings.TrimSpace(msg)
	s = smartDoubles.Replace(s)
	s = smartSingles.Replace(s)
	s = trailingPunct.ReplaceAllString(s, "")
	s = leadingPunct.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	s = trailingSep.ReplaceAllString(s, "")
	return s
}

// column maps a free-form column phrase to the actual column name when the
// resolver knows it, keeping the raw phrase otherwise so the dispatcher can
// report it verbatim.
func (p *Parser) column(phrase string) string {
	if col, ok := p.resolver.Lookup(phrase); ok {
		return col.Name
	}
	return strings.TrimSpace(phrase)
}

// taskRef parses "#12", "12" or free text into a task reference.
func taskRef(ref string) actions.TaskRef {
	if m := taskIDRef.FindStringSubmatch(ref); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && id > 0 {
			return actions.ByID(id)
		}
	}
	return actions.ByTitle(strings.TrimSpace(ref))
}

// The rule table. Order is load-bearing: earlier rules shadow later ones.
var ruleTable = []rule{
	{"undo-token", parseUndoToken},
	{"create", parseCreate},
	{"quick-shorthand", parseQuickShorthand},
	{"move", parseMove},
	{"update", parseUpdate},
	{"set-due-first", parseSetDueFirst},
	{"set-due-ids", parseSetDueIDs},
	{"set-points", parseSetPoints},
	{"mark-urgent", parseMarkUrgent},
	{"remove-urgent", parseRemoveUrgent},
	{"bare-undo", parseBareUndo},
	{"tidy", parseTidy},
	{"tag", parseTag},
	{"assign", parseAssign},
	{"comment", parseComment},
	{"list", parseList},
	{"natural-filter", parseNaturalFilter},
	{"search", parseSearch},
	{"summarize", parseSummarize},
	{"standing", parseStanding},
}

var undoTokenPattern = regexp.MustCompile(`^undo\s+([a-z0-9\-_]{6,})$`)

func parseUndoToken(p *Parser, in *input) []actions.Action {
	m := undoTokenPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	return []actions.Action{{Type: actions.TypeUndo, Token: m[1]}}
}

var createPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(create|add)\s+(task\s+)?["'](.+?)["']\s+(in|to)\s+(.+)$`),
	regexp.MustCompile(`^(create|add)\s+(task\s+)?(.+?)\s+(in|to)\s+(.+)$`),
	regexp.MustCompile(`^(create|add)\s+["'](.+?)["']$`),
	regexp.MustCompile(`^(create|add)\s+task\s+(.+)$`),
}

func parseCreate(p *Parser, in *input) []actions.Action {
	for _, pattern := range createPatterns {
		m := pattern.FindStringSubmatch(in.body)
		if m == nil {
			continue
		}

		var title, column string
		switch len(m) {
		case 6:
			title = m[3]
			column = p.column(m[5])
		case 3:
			title = m[2]
			column = ""
		default:
			continue
		}

		// Quoted titles keep their original case.
		fromQuote := len(in.quoted) > 0
		if fromQuote {
			title = in.quoted[0]
		}

		var tags []string
		for _, t := range inlineTag.FindAllStringSubmatch(title, -1) {
			tags = append(tags, t[1])
		}
		if len(tags) > 0 {
			title = inlineTag.ReplaceAllString(title, "")
		}

		var priority string
		if highWords.MatchString(title) {
			priority = actions.PriorityHigh
			// Quoted titles are taken verbatim, only unquoted ones lose the
			// priority keywords.
			if !fromQuote {
				title = strings.TrimSpace(highWords.ReplaceAllString(title, ""))
			}
		}

		return []actions.Action{{
			Type:     actions.TypeCreateTask,
			Title:    strings.TrimSpace(title),
			Column:   column,
			Tags:     tags,
			Priority: priority,
		}}
	}
	return nil
}

var quickPatterns = []struct {
	pattern *regexp.Regexp
	column  string
	quoted  bool
}{
	{regexp.MustCompile(`^(?:done|finish)\s+#(\d+)$`), "done", false},
	{regexp.MustCompile(`^start\s+#(\d+)$`), "in progress", false},
	{regexp.MustCompile(`^ready\s+#(\d+)$`), "ready", false},
	{regexp.MustCompile(`^(?:done|finish)\s+["'](.+?)["']$`), "done", true},
	{regexp.MustCompile(`^start\s+["'](.+?)["']$`), "in progress", true},
	{regexp.MustCompile(`^ready\s+["'](.+?)["']$`), "ready", true},
}

func parseQuickShorthand(p *Parser, in *input) []actions.Action {
	for _, q := range quickPatterns {
		m := q.pattern.FindStringSubmatch(in.body)
		if m == nil {
			continue
		}
		ref := m[1]
		if q.quoted && len(in.quoted) > 0 {
			ref = in.quoted[0]
		}
		return []actions.Action{{
			Type:   actions.TypeMoveTask,
			Task:   taskRef(ref),
			Column: p.column(q.column),
		}}
	}
	return nil
}

var movePatterns = []struct {
	pattern *regexp.Regexp
	quoted  bool
}{
	{regexp.MustCompile(`^move\s+#(\d+)\s+to\s+(.+)$`), false},
	{regexp.MustCompile(`^move\s+["'](.+?)["']\s+to\s+(.+)$`), true},
	{regexp.MustCompile(`^move\s+(.+?)\s+to\s+(.+)$`), false},
}

func parseMove(p *Parser, in *input) []actions.Action {
	for _, mp := range movePatterns {
		m := mp.pattern.FindStringSubmatch(in.body)
		if m == nil {
			continue
		}
		ref := m[1]
		if mp.quoted && len(in.quoted) > 0 {
			ref = in.quoted[0]
		}
		return []actions.Action{{
			Type:   actions.TypeMoveTask,
			Task:   taskRef(ref),
			Column: p.column(m[2]),
		}}
	}
	return nil
}

var updatePattern = regexp.MustCompile(`^update\s+(.+?)\s+(title|desc|description|priority)\s*:\s*(.+)$`)

func parseUpdate(p *Parser, in *input) []actions.Action {
	m := updatePattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}

	a := actions.Action{Type: actions.TypeUpdateTask, Task: taskRef(m[1])}
	value := strings.TrimSpace(m[3])

	switch field := m[2]; {
	case strings.HasPrefix(field, "title"):
		a.Title = value
	case strings.HasPrefix(field, "desc"):
		a.Description = value
	case field == "priority":
		switch {
		case regexp.MustCompile(`high|urgent|critical`).MatchString(value):
			a.Priority = actions.PriorityHigh
		case strings.Contains(value, "low"):
			a.Priority = actions.PriorityLow
		default:
			a.Priority = actions.PriorityNormal
		}
	}
	return []actions.Action{a}
}

var setDueIDsPattern = regexp.MustCompile(`^(?:set|coloc[ae]|defin(?:a|ir))\s+(?:due|prazo)\s+(.+?)\s+(?:for|para)\s+(.+)$`)

func parseSetDueIDs(p *Parser, in *input) []actions.Action {
	m := setDueIDsPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	var ids []int64
	for _, idm := range allIDs.FindAllStringSubmatch(m[2], -1) {
		if id, err := strconv.ParseInt(idm[1], 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return []actions.Action{{Type: actions.TypeSetDue, When: strings.TrimSpace(m[1]), IDs: ids}}
}

var setDueFirstPattern = regexp.MustCompile(`^(?:set|coloc[ae]|defin(?:a|ir))\s+(?:due|prazo)\s+(.+?)\s+(?:for\s+first\s+(\d+)\s+in\s+(.+)|nos?\s+(\d+)\s+primeiros?\s+do\s+(.+))$`)

func parseSetDueFirst(p *Parser, in *input) []actions.Action {
	m := setDueFirstPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	countRaw := m[2]
	columnRaw := m[3]
	if countRaw == "" {
		countRaw = m[4]
		columnRaw = m[5]
	}
	first, err := strconv.Atoi(countRaw)
	if err != nil || first <= 0 || strings.TrimSpace(columnRaw) == "" {
		return nil
	}
	return []actions.Action{{
		Type:   actions.TypeSetDue,
		When:   strings.TrimSpace(m[1]),
		First:  first,
		Column: p.column(columnRaw),
	}}
}

var setPointsPattern = regexp.MustCompile(`^(?:set\s+)?points\s+(\S+)\s+(?:to\s+)?(\d+)$`)

func parseSetPoints(p *Parser, in *input) []actions.Action {
	m := setPointsPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	points, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return []actions.Action{{Type: actions.TypeSetPoints, Task: taskRef(m[1]), Points: points}}
}

var markUrgentPattern = regexp.MustCompile(`^(?:mark|marcar?|marque)\s+#(\d+)\s+urgente?$`)

func parseMarkUrgent(p *Parser, in *input) []actions.Action {
	m := markUrgentPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	return []actions.Action{{
		Type:     actions.TypeUpdateTask,
		Task:     taskRef(m[1]),
		Priority: actions.PriorityHigh,
	}}
}

var removeUrgentPattern = regexp.MustCompile(`^(?:remove|tirar)\s+urgente?\s+#(\d+)$`)

func parseRemoveUrgent(p *Parser, in *input) []actions.Action {
	m := removeUrgentPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	return []actions.Action{{
		Type:     actions.TypeUpdateTask,
		Task:     taskRef(m[1]),
		Priority: actions.PriorityNormal,
	}}
}

var bareUndoPattern = regexp.MustCompile(`^(undo|undo last|desfazer|voltar)$`)

func parseBareUndo(p *Parser, in *input) []actions.Action {
	if !bareUndoPattern.MatchString(in.body) {
		return nil
	}
	return []actions.Action{{Type: actions.TypeUndoLast}}
}

var (
	tidyBoardPattern  = regexp.MustCompile(`^tidy(?:\s+(?:board|quadro))?$`)
	tidyColumnPattern = regexp.MustCompile(`^tidy\s+(.+)$`)
)

func parseTidy(p *Parser, in *input) []actions.Action {
	if tidyBoardPattern.MatchString(in.body) {
		return []actions.Action{{Type: actions.TypeTidyBoard}}
	}
	if m := tidyColumnPattern.FindStringSubmatch(in.body); m != nil {
		return []actions.Action{{Type: actions.TypeTidyColumn, Column: p.column(m[1])}}
	}
	return nil
}

var tagPattern = regexp.MustCompile(`^tag\s+(.+?)\s+(add|remove)\s+(.+)$`)

func parseTag(p *Parser, in *input) []actions.Action {
	m := tagPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	var tags []string
	for _, t := range regexp.MustCompile(`[,\s]+`).Split(m[3], -1) {
		if t != "" {
			tags = append(tags, t)
		}
	}
	a := actions.Action{Type: actions.TypeTagTask, Task: taskRef(m[1])}
	if m[2] == "add" {
		a.Add = tags
	} else {
		a.Remove = tags
	}
	return []actions.Action{a}
}

var assignPatterns = []struct {
	pattern *regexp.Regexp
	quoted  bool
}{
	{regexp.MustCompile(`^assign\s+#(\d+)\s+to\s+(.+)$`), false},
	{regexp.MustCompile(`^assign\s+["'](.+?)["']\s+to\s+(.+)$`), true},
	{regexp.MustCompile(`^assign\s+(.+?)\s+to\s+(.+)$`), false},
}

func parseAssign(p *Parser, in *input) []actions.Action {
	for _, ap := range assignPatterns {
		m := ap.pattern.FindStringSubmatch(in.body)
		if m == nil {
			continue
		}
		ref := m[1]
		if ap.quoted && len(in.quoted) > 0 {
			ref = in.quoted[0]
		}
		return []actions.Action{{
			Type:     actions.TypeAssignTask,
			Task:     taskRef(ref),
			Assignee: strings.TrimSpace(m[2]),
		}}
	}
	return nil
}

var commentPatterns = []struct {
	pattern *regexp.Regexp
	quoted  bool
}{
	{regexp.MustCompile(`^comment\s+#(\d+)\s+(.+)$`), false},
	{regexp.MustCompile(`^comment\s+["'](.+?)["']\s+(.+)$`), true},
	{regexp.MustCompile(`^comment\s+(.+?)\s+:\s*(.+)$`), false},
}

func parseComment(p *Parser, in *input) []actions.Action {
	for _, cp := range commentPatterns {
		m := cp.pattern.FindStringSubmatch(in.body)
		if m == nil {
			continue
		}
		ref := m[1]
		if cp.quoted && len(in.quoted) > 0 {
			ref = in.quoted[0]
		}
		return []actions.Action{{
			Type:    actions.TypeCommentTask,
			Task:    taskRef(ref),
			Comment: strings.TrimSpace(m[2]),
		}}
	}
	return nil
}

var listPattern = regexp.MustCompile(`^list(?:\s+tasks)?(?:\s+(.*))?$`)

func parseList(p *Parser, in *input) []actions.Action {
	m := listPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	scope := strings.TrimSpace(m[1])
	if scope == "" {
		return []actions.Action{{Type: actions.TypeListTasks}}
	}
	return []actions.Action{{Type: actions.TypeListTasks, Column: p.column(scope)}}
}

var (
	blockedQuery = regexp.MustCompile(`^blocked$|what'?s?\s+blocked`)
	overdueQuery = regexp.MustCompile(`^(overdue|past\s+due)$`)
	todayQuery   = regexp.MustCompile(`^(due\s+today|today)$`)
	mineQuery    = regexp.MustCompile(`^(my\s+tasks|mine)$`)
)

func parseNaturalFilter(p *Parser, in *input) []actions.Action {
	switch {
	case blockedQuery.MatchString(in.body):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "blocked"}}
	case overdueQuery.MatchString(in.body):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "overdue"}}
	case todayQuery.MatchString(in.body):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "today"}}
	case mineQuery.MatchString(in.body):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "mine"}}
	}
	return nil
}

var searchPattern = regexp.MustCompile(`^(?:search|find)\s+(.+)$`)

func parseSearch(p *Parser, in *input) []actions.Action {
	m := searchPattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	return []actions.Action{{Type: actions.TypeSearchTasks, Query: strings.TrimSpace(m[1])}}
}

var (
	summarizePattern = regexp.MustCompile(`^(?:summary|summarize|resumo|resumir)\s+(.+)$`)
	overdueScope     = regexp.MustCompile(`overdue|past\s+due|atrasad`)
	todayScope       = regexp.MustCompile(`today|hoje`)
	mineScope        = regexp.MustCompile(`mine|my\s+tasks|minhas`)
	blockedScope     = regexp.MustCompile(`blocked|bloquead|stuck`)
)

func parseSummarize(p *Parser, in *input) []actions.Action {
	m := summarizePattern.FindStringSubmatch(in.body)
	if m == nil {
		return nil
	}
	scope := strings.ToLower(strings.TrimSpace(m[1]))
	switch {
	case overdueScope.MatchString(scope):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "overdue"}}
	case todayScope.MatchString(scope):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "today"}}
	case mineScope.MatchString(scope):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "mine"}}
	case blockedScope.MatchString(scope):
		return []actions.Action{{Type: actions.TypeListTasks, Filter: "blocked"}}
	}
	return []actions.Action{{Type: actions.TypeListTasks, Column: p.column(scope)}}
}

var (
	boardStatusPattern = regexp.MustCompile(`^(?:board\s+)?(?:status|summary|overview)$`)
	doneAnyPattern     = regexp.MustCompile(`^done\s+(.+)$`)
	startAnyPattern    = regexp.MustCompile(`^start\s+(.+)$`)
	whatsNextPattern   = regexp.MustCompile(`^(what'?s?\s+next|next\s+task)`)
	whatsWIPPattern    = regexp.MustCompile(`^(what'?s?\s+in\s+progress|wip|current)`)
)

func parseStanding(p *Parser, in *input) []actions.Action {
	if boardStatusPattern.MatchString(in.body) {
		return []actions.Action{
			{Type: actions.TypeListTasks, Column: p.column("in progress")},
			{Type: actions.TypeListTasks, Column: p.column("ready")},
			{Type: actions.TypeListTasks, Filter: "overdue"},
		}
	}
	if m := doneAnyPattern.FindStringSubmatch(in.body); m != nil {
		return []actions.Action{{Type: actions.TypeMoveTask, Task: taskRef(m[1]), Column: p.column("done")}}
	}
	if m := startAnyPattern.FindStringSubmatch(in.body); m != nil {
		return []actions.Action{{Type: actions.TypeMoveTask, Task: taskRef(m[1]), Column: p.column("in progress")}}
	}
	if whatsNextPattern.MatchString(in.body) {
		return []actions.Action{{Type: actions.TypeListTasks, Column: p.column("ready")}}
	}
	if whatsWIPPattern.MatchString(in.body) {
		return []actions.Action{{Type: actions.TypeListTasks, Column: p.column("in progress")}}
	}
	return nil
}
