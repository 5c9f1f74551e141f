package cli

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/orchestrator"
	"github.com/shaiso/dwloader/internal/staging"
)

func count(n int64) string {
	return humanize.Comma(n)
}

func printReport(out *Output, r *orchestrator.Report) {
	if out.JSONMode() {
		out.JSON(r)
		return
	}

	tr := r.TimeDimension
	rows := [][]string{{tr.Table, count(tr.Rows), tableState(tr.Rows), dateRange(tr)}}
	for _, t := range r.Tables {
		rows = append(rows, []string{t.Table, count(t.Rows), tableState(t.Rows), ""})
	}
	out.Table([]string{"TABLE", "ROWS", "STATE", "RANGE"}, rows)

	routine := "found"
	if !r.RoutineFound {
		routine = "NOT FOUND"
	}
	out.Line("")
	out.Line("Routine " + r.Routine + ": " + routine)

	for _, issue := range r.Issues {
		out.Warn(issue)
	}
}

func tableState(rows int64) string {
	if rows == 0 {
		return "EMPTY"
	}
	return "ok"
}

func dateRange(tr domain.TimeRange) string {
	if tr.First == "" {
		return ""
	}
	return tr.First + " .. " + tr.Last
}

func printResult(out *Output, res *orchestrator.Result) {
	if res == nil {
		return
	}
	if out.JSONMode() {
		out.JSON(res)
		return
	}

	run := res.Run
	out.Table(
		[]string{"RUN_ID", "STAGE", "STATUS", "DURATION", "COMMITS", "ROLLBACKS"},
		[][]string{{
			run.ID.String(), string(run.Stage), string(run.Status),
			run.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(res.Tx.Commits), strconv.Itoa(res.Tx.Rollbacks),
		}},
	)

	if res.Summary != nil {
		out.Line("")
		printSummary(out, res.Summary)
	}
	if len(res.Rejections) > 0 {
		out.Line("")
		printRejections(out, res.Rejections)
	}
	for _, w := range res.Warnings {
		out.Warn(w)
	}
}

func printSummary(out *Output, s *domain.Summary) {
	if out.JSONMode() {
		out.JSON(s)
		return
	}

	if p := s.Process; p != nil {
		out.Table(
			[]string{"PROCESS", "ID", "STATUS", "DURATION", "PROCESSED", "REJECTED"},
			[][]string{{
				p.Name, strconv.FormatInt(p.ID, 10), p.Status,
				(time.Duration(p.DurationSeconds()) * time.Second).String(),
				count(p.Processed), count(p.Rejected),
			}},
		)
		out.Line("")
	} else {
		out.Line("No control log entry for the process.")
	}

	rows := make([][]string, len(s.FactRows))
	for i, f := range s.FactRows {
		rows[i] = []string{f.Table, count(f.Rows)}
	}
	out.Table([]string{"FACT_TABLE", "ROWS"}, rows)
}

func printRejections(out *Output, groups []domain.RejectionGroup) {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.SourceTable, g.Reason, count(g.Count)}
	}
	out.Print([]string{"SOURCE_TABLE", "REASON", "COUNT"}, rows, groups)
}

func printStaging(out *Output, res *staging.Result) {
	if out.JSONMode() {
		out.JSON(res)
		return
	}

	rows := make([][]string, len(res.Datasets))
	for i, d := range res.Datasets {
		state := "loaded"
		if d.Skipped {
			state = "skipped"
		}
		rows[i] = []string{d.File, d.Table, count(int64(d.Rows)), state}
	}
	out.Table([]string{"FILE", "TABLE", "ROWS", "STATE"}, rows)

	for _, w := range res.Warnings {
		out.Warn(w)
	}
}
