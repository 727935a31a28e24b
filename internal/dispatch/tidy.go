package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/columns"
	"github.com/wordflux/boardctl/internal/output"
)

// TidyOp is one planned maintenance operation.
type TidyOp struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	Reason string         `json:"reason"`
}

// TidyReport is the outcome of a tidy run. In preview mode only Ops is
// populated and the board is untouched.
type TidyReport struct {
	Preview bool     `json:"preview"`
	Ops     []TidyOp `json:"ops"`
	Applied int      `json:"applied"`
	Errors  []string `json:"errors,omitempty"`
	Backup  string   `json:"backup,omitempty"`
}

var titleCaser = cases.Title(language.English)

func (d *Dispatcher) tidyBoard(ctx context.Context, params map[string]any) (*Result, error) {
	return d.tidy(ctx, params, "")
}

func (d *Dispatcher) tidyColumn(ctx context.Context, params map[string]any) (*Result, error) {
	column := paramString(params, "column")
	if column == "" {
		return nil, output.ErrUsage("Column must not be empty")
	}
	return d.tidy(ctx, params, column)
}

func (d *Dispatcher) tidy(ctx context.Context, params map[string]any, onlyColumn string) (*Result, error) {
	state, err := d.state(ctx)
	if err != nil {
		return nil, err
	}
	resolver := d.resolver(state)

	scope := state.Columns
	if onlyColumn != "" {
		col, ok := resolver.Lookup(onlyColumn)
		if !ok {
			return nil, output.ErrNotFound("column", onlyColumn)
		}
		scope = []board.Column{*col}
	}

	plan := d.buildTidyPlan(scope, resolver)
	report := TidyReport{Ops: plan, Preview: paramBool(params, "preview")}

	if report.Preview {
		return &Result{Data: report, Label: fmt.Sprintf("Tidy would apply %d operations", len(plan))}, nil
	}

	if len(plan) > 0 {
		// Backup failure is reported but never blocks the plan.
		if path, err := d.writeBackup(state); err != nil {
			d.warnf("tidy backup failed: %v", err)
		} else {
			report.Backup = path
		}
	}

	// Each op runs through Invoke so it gets its own undo record, and each
	// failure is isolated: later ops still run.
	for _, op := range plan {
		if _, err := d.Invoke(ctx, op.Method, op.Params, Options{}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", op.Reason, err))
			continue
		}
		report.Applied++
	}

	return &Result{
		Data:  report,
		Label: fmt.Sprintf("Tidy applied %d of %d operations", report.Applied, len(plan)),
	}, nil
}

// buildTidyPlan computes the maintenance operations for the given columns:
// untitled cards go to the intake column, messy titles are normalized, and
// duplicate titles within the same canonical column get a "duplicate" label.
func (d *Dispatcher) buildTidyPlan(scope []board.Column, resolver *columns.Resolver) []TidyOp {
	var plan []TidyOp

	intake := resolver.DefaultIntake()
	canLabel := d.provider.Capabilities().Labels
	seen := make(map[string]bool) // bucket + normalized title

	for _, col := range scope {
		bucket := string(columns.BucketOf(col.Name))
		if bucket == "" {
			bucket = strings.ToLower(col.Name)
		}

		for _, card := range col.Cards {
			if strings.TrimSpace(card.Title) == "" {
				if intake != nil && intake.ID != col.ID {
					plan = append(plan, TidyOp{
						Method: MethodMoveCard,
						Params: map[string]any{"task_id": card.ID, "column_id": intake.ID},
						Reason: fmt.Sprintf("move untitled card #%d to %s", card.ID, intake.Name),
					})
				}
				continue
			}

			if fixed := normalizeTitle(card.Title); fixed != card.Title {
				plan = append(plan, TidyOp{
					Method: MethodUpdateCard,
					Params: map[string]any{"task_id": card.ID, "title": fixed},
					Reason: fmt.Sprintf("normalize title of #%d", card.ID),
				})
			}

			key := bucket + "\x00" + strings.ToLower(normalizeTitle(card.Title))
			if seen[key] {
				if canLabel {
					plan = append(plan, TidyOp{
						Method: MethodAddLabel,
						Params: map[string]any{"task_id": card.ID, "label": "duplicate"},
						Reason: fmt.Sprintf("flag duplicate title on #%d", card.ID),
					})
				}
				continue
			}
			seen[key] = true
		}
	}

	return plan
}

// normalizeTitle collapses runs of whitespace and re-capitalizes titles that
// are entirely lower or upper case. Mixed-case titles are left alone.
func normalizeTitle(title string) string {
	t := strings.Join(strings.Fields(title), " ")
	if t == "" {
		return t
	}
	if t == strings.ToLower(t) || t == strings.ToUpper(t) {
		t = titleCaser.String(strings.ToLower(t))
	}
	return t
}

func (d *Dispatcher) writeBackup(state *board.State) (string, error) {
	dir := d.backupDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "boardctl", "backups")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("board-%s.json", d.now().UTC().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
