// Package columns resolves free-text column references against a board's
// live column list. Resolution priority:
//  1. Ordinal (1-based position, negative counts from the end)
//  2. Column id (punctuation-insensitive)
//  3. Normalized display name
//  4. Canonical label derived from position + name
//  5. Registered bucket synonym ("wip", "qa", "shipped", ...)
//  6. First column fallback
package columns

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wordflux/boardctl/internal/board"
)

// Bucket is one of the semantic column groups many differently named real
// columns map onto.
type Bucket string

const (
	BucketBacklog    Bucket = "Backlog"
	BucketReady      Bucket = "Ready"
	BucketInProgress Bucket = "In Progress"
	BucketReview     Bucket = "Review"
	BucketDone       Bucket = "Done"
)

// bucketDef ties a bucket to the pattern that detects it in real column names
// and the synonym phrases that should resolve to it.
type bucketDef struct {
	bucket   Bucket
	pattern  *regexp.Regexp
	synonyms []string
}

var bucketDefs = []bucketDef{
	{
		bucket:  BucketBacklog,
		pattern: regexp.MustCompile(`todo|backlog`),
		synonyms: []string{
			"todo", "todos", "backlog", "to do", "to-do", "inbox", "new",
			"ideas", "analysis", "planning", "intake", "icebox",
		},
	},
	{
		bucket:  BucketReady,
		pattern: regexp.MustCompile(`ready`),
		synonyms: []string{
			"ready", "ready to start", "up next", "next", "queued", "planned",
		},
	},
	{
		bucket:  BucketInProgress,
		pattern: regexp.MustCompile(`in progress|doing|progress|wip|work in progress`),
		synonyms: []string{
			"in progress", "inprogress", "doing", "progress", "wip",
			"work in progress", "working", "active", "current", "dev",
			"coding", "building", "implementing", "ongoing", "started",
		},
	},
	{
		bucket:  BucketReview,
		pattern: regexp.MustCompile(`review|qa|verify|testing`),
		synonyms: []string{
			"review", "reviewing", "qa", "qc", "verify", "verifying",
			"testing", "test", "validation", "checking", "staging", "uat",
			"verification",
		},
	},
	{
		bucket:  BucketDone,
		pattern: regexp.MustCompile(`done|complete|finished`),
		synonyms: []string{
			"done", "complete", "completed", "finished", "closed", "resolved",
			"shipped", "deployed", "live", "released", "published", "archived",
		},
	},
}

// Blocked-style columns are not one of the five buckets but get their own
// synonym set so "move #4 to stuck" still lands somewhere sensible.
var blockedDef = bucketDef{
	pattern: regexp.MustCompile(`block`),
	synonyms: []string{
		"blocked", "blocking", "stuck", "waiting", "on hold", "onhold", "paused",
	},
}

var (
	nonWord      = regexp.MustCompile(`[^a-z0-9\s#-]`)
	commandVerbs = regexp.MustCompile(`\b(move|put|send|drop|shift)\s+(the\s+)?`)
	prepositions = regexp.MustCompile(`\b(in|into|to)\s+(the\s+)?`)
	articles     = regexp.MustCompile(`\b(the|a|an)\s+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Normalize lowercases column text and strips the command phrasing that tends
// to ride along with it ("move to the backlog" -> "backlog").
func Normalize(value string) string {
	v := strings.ToLower(value)
	v = nonWord.ReplaceAllString(v, "")
	v = commandVerbs.ReplaceAllString(v, "")
	v = prepositions.ReplaceAllString(v, "")
	v = articles.ReplaceAllString(v, "")
	v = spaces.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}

// Resolver maps column references onto one board's canonical columns. Build
// one per board snapshot; the synonym table depends on the live column names.
type Resolver struct {
	ordered  []board.Column          // sorted by position
	synonyms map[string]*board.Column // normalized phrase -> column
	byID     map[string]*board.Column
}

// NewResolver builds a resolver for the given columns. Synonym registration
// scans each column name for bucket-indicating substrings and maps every
// known phrasing of the matched bucket onto that column; earlier columns win
// on conflicts.
func NewResolver(cols []board.Column) *Resolver {
	ordered := make([]board.Column, len(cols))
	copy(ordered, cols)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	r := &Resolver{
		ordered:  ordered,
		synonyms: make(map[string]*board.Column),
		byID:     make(map[string]*board.Column),
	}

	defs := append([]bucketDef{}, bucketDefs...)
	defs = append(defs, blockedDef)

	for i := range r.ordered {
		col := &r.ordered[i]
		key := Normalize(col.Name)

		r.byID[normalizeID(strconv.FormatInt(col.ID, 10))] = col
		if _, taken := r.synonyms[key]; !taken {
			r.synonyms[key] = col
		}
		canonical := canonicalLabel(i, col.Name)
		if _, taken := r.synonyms[canonical]; !taken {
			r.synonyms[canonical] = col
		}

		for _, def := range defs {
			if !def.pattern.MatchString(key) {
				continue
			}
			for _, syn := range def.synonyms {
				if _, taken := r.synonyms[syn]; !taken {
					r.synonyms[syn] = col
				}
			}
		}
	}

	return r
}

// RegisterSynonym adds a project-specific phrase for a column id. Unknown ids
// are ignored.
func (r *Resolver) RegisterSynonym(phrase string, columnID int64) {
	for i := range r.ordered {
		if r.ordered[i].ID == columnID {
			r.synonyms[Normalize(phrase)] = &r.ordered[i]
			return
		}
	}
}

// Columns returns the board columns sorted by position.
func (r *Resolver) Columns() []board.Column {
	return r.ordered
}

// Lookup resolves text to a column without the first-column fallback. The
// parser uses this so unmatched references stay as raw text for the
// dispatcher to report on.
func (r *Resolver) Lookup(text string) (*board.Column, bool) {
	if len(r.ordered) == 0 {
		return nil, false
	}

	trimmed := strings.TrimSpace(text)

	// Ordinal reference: "2" is the second column, "-1" the last. Out of
	// range ordinals fall through to the id match.
	if n, err := strconv.Atoi(trimmed); err == nil && n != 0 {
		idx := n - 1
		if n < 0 {
			idx = len(r.ordered) + n
		}
		if idx >= 0 && idx < len(r.ordered) {
			return &r.ordered[idx], true
		}
	}

	if col, ok := r.byID[normalizeID(trimmed)]; ok {
		return col, true
	}

	if col, ok := r.synonyms[Normalize(trimmed)]; ok {
		return col, true
	}

	return nil, false
}

// Resolve resolves text to a column, falling back to the first column when
// nothing matches.
func (r *Resolver) Resolve(text string) (*board.Column, error) {
	if len(r.ordered) == 0 {
		return nil, fmt.Errorf("board has no columns")
	}
	if col, ok := r.Lookup(text); ok {
		return col, nil
	}
	return &r.ordered[0], nil
}

// BucketOf classifies a column name into one of the five buckets, or "" when
// none matches.
func BucketOf(name string) Bucket {
	key := Normalize(name)
	for _, def := range bucketDefs {
		if def.pattern.MatchString(key) {
			return def.bucket
		}
	}
	return ""
}

// DefaultIntake returns the column new and title-less cards should land in:
// the Backlog-bucket column if one exists, otherwise the first column.
func (r *Resolver) DefaultIntake() *board.Column {
	if len(r.ordered) == 0 {
		return nil
	}
	for i := range r.ordered {
		if BucketOf(r.ordered[i].Name) == BucketBacklog {
			return &r.ordered[i]
		}
	}
	return &r.ordered[0]
}

// canonicalLabel is a stable per-board label combining position and
// normalized name, so boards with duplicate or renamed columns stay
// addressable ("2-ready").
func canonicalLabel(index int, name string) string {
	return fmt.Sprintf("%d-%s", index+1, Normalize(name))
}

// normalizeID strips everything except letters and digits, so "#42" and "42"
// reference the same id.
func normalizeID(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
