package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/nao1215/markdown"
	"github.com/nao1215/portalshot/internal/config"
	"github.com/nao1215/portalshot/internal/database"
	"github.com/nao1215/portalshot/internal/model"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// timeLayout is how run timestamps are displayed.
const timeLayout = "2006-01-02 15:04:05"

// recordRows returns the change log rows with title-cased statuses.
// The stored status strings are kept verbatim in the database and CSV.
func recordRows(records []model.ChangeRecord) [][]string {
	statusTitle := cases.Title(language.English)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := r.Row()
		row[len(row)-1] = statusTitle.String(string(r.Status))
		rows = append(rows, row)
	}
	return rows
}

// NewHistoryCmd creates the history command.
// This command shows runs saved by 'portalshot capture' and how page
// fingerprints changed between them.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved capture runs and fingerprint changes",
		Long: `History lists the capture runs stored in the history database.

With --run, it shows the change log of one run and compares its page
fingerprints with the previous run (or the run given by --with):
- Changed: the page renders differently than before
- New: the URL was not captured in the older run
- Gone: the URL is no longer captured

Examples:
  # List the 20 most recent runs
  portalshot history

  # Show run 7 and what changed since run 6
  portalshot history --run 7

  # Compare run 7 with run 3
  portalshot history --run 7 --with 3

  # Latest run as JSON
  portalshot history --latest --json

  # Comparison as Markdown, for a ticket or wiki page
  portalshot history --latest --markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	// Selection flags
	cmd.Flags().Int64P("run", "r", 0, "Show the run with this ID")
	cmd.Flags().Bool("latest", false, "Show the most recent run")
	cmd.Flags().Int64P("with", "w", 0, "Compare with this run instead of the previous one")
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 for all)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	runID    int64
	latest   bool
	withID   int64
	limit    int
	json     bool
	markdown bool
	noColor  bool
	dbDir    string
}

// runDetail is the JSON shape of one run with its comparison.
type runDetail struct {
	Run     *database.RunSummary `json:"run"`
	Records []model.ChangeRecord `json:"records"`
	Diff    *database.RunDiff    `json:"diff,omitempty"`
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	// Validate before opening the database so no file is created on misuse.
	if opts.json && opts.markdown {
		return errors.New("--json and --markdown cannot be used together")
	}
	if opts.withID != 0 && opts.runID == 0 && !opts.latest {
		return errors.New("--with requires --run or --latest")
	}
	if opts.runID != 0 && opts.latest {
		return errors.New("--run and --latest cannot be used together")
	}

	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No capture history found.")
			fmt.Fprintln(cmd.OutOrStdout(), "\nUse 'portalshot capture' to record a run.")
			return nil
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if opts.latest {
		opts.runID, err = db.LatestRunID(ctx)
		if err != nil {
			if errors.Is(err, database.ErrNoRuns) {
				fmt.Fprintln(out, "No capture history found.")
				return nil
			}
			return err
		}
	}

	if opts.runID == 0 {
		return listRuns(ctx, db, out, opts)
	}
	return showRun(ctx, db, out, opts)
}

// parseHistoryFlags reads the history flags.
func parseHistoryFlags(cmd *cobra.Command) (*historyOptions, error) {
	flags := cmd.Flags()
	opts := &historyOptions{}
	var err error

	if opts.runID, err = flags.GetInt64("run"); err != nil {
		return nil, err
	}
	if opts.latest, err = flags.GetBool("latest"); err != nil {
		return nil, err
	}
	if opts.withID, err = flags.GetInt64("with"); err != nil {
		return nil, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.noColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	return opts, nil
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.limit)
	if err != nil {
		return err
	}

	if opts.json {
		if runs == nil {
			runs = []database.RunSummary{}
		}
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No capture history found.")
		fmt.Fprintln(out, "\nUse 'portalshot capture' to record a run.")
		return nil
	}

	header := []string{"ID", "Started", "Input", "URLs", "Captured", "Failed", "Pages"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format(timeLayout),
			r.InputPath,
			strconv.Itoa(r.TargetCount),
			strconv.Itoa(r.CapturedCount),
			strconv.Itoa(r.FailedCount),
			strconv.Itoa(r.GroupCount),
		})
	}

	if opts.markdown {
		md := markdown.NewMarkdown(out).
			H2("Capture runs").
			Table(markdown.TableSet{Header: header, Rows: rows})
		return md.Build()
	}

	fmt.Fprintf(out, "Capture runs (%d):\n\n", len(runs))
	writeTable(out, header, rows, opts.noColor, nil)
	fmt.Fprintln(out, "\nUse 'portalshot history --run <id>' to see what changed in a run.")
	return nil
}

// showRun prints one run, its change log and the comparison with an older run.
func showRun(ctx context.Context, db *database.HistoryDB, out io.Writer, opts *historyOptions) error {
	run, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}
	records, err := db.GetRunRecords(ctx, run.ID)
	if err != nil {
		return err
	}

	var diff *database.RunDiff
	if opts.withID != 0 {
		diff, err = db.CompareRuns(ctx, opts.withID, run.ID)
	} else {
		diff, err = db.CompareWithPrevious(ctx, run.ID)
		if errors.Is(err, database.ErrRunNotFound) {
			// First run: nothing to compare with.
			diff, err = nil, nil
		}
	}
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		if records == nil {
			records = []model.ChangeRecord{}
		}
		return writeJSON(out, runDetail{Run: run, Records: records, Diff: diff})
	case opts.markdown:
		return writeRunMarkdown(out, run, records, diff)
	default:
		writeRunText(out, run, records, diff, opts.noColor)
		return nil
	}
}

// writeRunText prints a run for the terminal.
func writeRunText(out io.Writer, run *database.RunSummary, records []model.ChangeRecord, diff *database.RunDiff, noColor bool) {
	fmt.Fprintf(out, "Run #%d\n", run.ID)
	fmt.Fprintf(out, "  Input:    %s\n", run.InputPath)
	fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Local().Format(timeLayout))
	fmt.Fprintf(out, "  Finished: %s\n", run.FinishedAt.Local().Format(timeLayout))
	fmt.Fprintf(out, "  URLs: %d, captured: %d, failed: %d, distinct pages: %d\n\n",
		run.TargetCount, run.CapturedCount, run.FailedCount, run.GroupCount)

	if len(records) > 0 {
		writeTable(out, model.ChangeLogHeader, recordRows(records), noColor, func(row int) lipgloss.Style {
			if records[row].Status == model.StatusError {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})
		fmt.Fprintln(out)
	}

	if diff == nil {
		fmt.Fprintln(out, "No earlier run to compare with.")
		return
	}
	if !diff.HasChanges() {
		fmt.Fprintf(out, "No change since run #%d (%d pages unchanged).\n", diff.OldRunID, len(diff.Unchanged))
		return
	}

	fmt.Fprintf(out, "Changes since run #%d:\n", diff.OldRunID)
	for _, c := range diff.Changed {
		fmt.Fprintf(out, "  ~ %s (%s -> %s)\n", c.URL, c.Previous, c.Current)
	}
	for _, u := range diff.Appeared {
		fmt.Fprintf(out, "  + %s\n", u)
	}
	for _, u := range diff.Disappeared {
		fmt.Fprintf(out, "  - %s\n", u)
	}
	fmt.Fprintf(out, "\n%d changed, %d new, %d gone, %d unchanged\n",
		len(diff.Changed), len(diff.Appeared), len(diff.Disappeared), len(diff.Unchanged))
}

// writeRunMarkdown prints a run as a Markdown document.
func writeRunMarkdown(out io.Writer, run *database.RunSummary, records []model.ChangeRecord, diff *database.RunDiff) error {
	md := markdown.NewMarkdown(out).
		H1(fmt.Sprintf("Capture run #%d", run.ID)).
		BulletList(
			"Input: `"+run.InputPath+"`",
			"Started: "+run.StartedAt.Local().Format(timeLayout),
			"Finished: "+run.FinishedAt.Local().Format(timeLayout),
			fmt.Sprintf("URLs: %d, captured: %d, failed: %d, distinct pages: %d",
				run.TargetCount, run.CapturedCount, run.FailedCount, run.GroupCount),
		)

	if len(records) > 0 {
		md.H2("Change log").Table(markdown.TableSet{Header: model.ChangeLogHeader, Rows: recordRows(records)})
	}

	if diff != nil {
		md.H2(fmt.Sprintf("Comparison with run #%d", diff.OldRunID))
		if !diff.HasChanges() {
			md.PlainText("No change.")
		} else {
			rows := make([][]string, 0, len(diff.Changed)+len(diff.Appeared)+len(diff.Disappeared))
			for _, c := range diff.Changed {
				rows = append(rows, []string{"Changed", c.URL, string(c.Previous), string(c.Current)})
			}
			for _, u := range diff.Appeared {
				rows = append(rows, []string{"New", u, "", ""})
			}
			for _, u := range diff.Disappeared {
				rows = append(rows, []string{"Gone", u, "", ""})
			}
			md.Table(markdown.TableSet{
				Header: []string{"Change", "URL", "Previous Hash", "Current Hash"},
				Rows:   rows,
			})
		}
	}
	return md.Build()
}

// writeTable renders rows as a rounded lipgloss table, or as aligned plain
// text when noColor is set. rowStyle may be nil.
func writeTable(out io.Writer, header []string, rows [][]string, noColor bool, rowStyle func(row int) lipgloss.Style) {
	if noColor {
		widths := make([]int, len(header))
		for i, h := range header {
			widths[i] = len(h)
		}
		for _, row := range rows {
			for i, cell := range row {
				if i < len(widths) && len(cell) > widths[i] {
					widths[i] = len(cell)
				}
			}
		}
		printRow := func(cells []string) {
			line := " "
			for i, cell := range cells {
				line += fmt.Sprintf(" %-*s", widths[i], cell)
			}
			fmt.Fprintln(out, line)
		}
		printRow(header)
		for _, row := range rows {
			printRow(row)
		}
		return
	}

	t := table.New().
		Headers(header...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if rowStyle != nil && row >= 0 && row < len(rows) {
				return rowStyle(row)
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})
	for _, row := range rows {
		t.Row(row...)
	}
	fmt.Fprintln(out, t.Render())
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
