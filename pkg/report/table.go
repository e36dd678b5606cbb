package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ja7ad/dyno/pkg/session"
)

// Table prints one line per sample while a run is in progress.
type Table struct {
	tw     *tabwriter.Writer
	pretty bool
}

// NewTable writes to w. Without pretty the lines are comma separated.
func NewTable(w io.Writer, pretty bool) *Table {
	return &Table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0), pretty: pretty}
}

func (t *Table) Header() {
	if !t.pretty {
		fmt.Fprintln(t.tw, "# n, time, speed(km/h), phase, progress")
		t.tw.Flush()
		return
	}
	fmt.Fprintln(t.tw, "N\tTIME\tSPEED (km/h)\tPHASE\tPROGRESS")
	fmt.Fprintln(t.tw, "-\t----\t------------\t-----\t--------")
	t.tw.Flush()
}

func (t *Table) Row(u session.Update) {
	if !t.pretty {
		fmt.Fprintf(t.tw, "%d, %s, %.2f, %s, %.2f\n",
			u.Index, u.Sample.Time.Humanized(), float64(u.Sample.Speed), u.Phase, u.Progress)
		t.tw.Flush()
		return
	}
	mark := ""
	if u.Changed {
		mark = " *"
	}
	fmt.Fprintf(t.tw, "%d\t%s\t%.2f\t%s%s\t%3.0f%%\n",
		u.Index, u.Sample.Time.Humanized(), float64(u.Sample.Speed), u.Phase, mark, u.Progress*100)
	t.tw.Flush()
}

// PrintSummary writes the summary block shown at the end of a run.
func PrintSummary(w io.Writer, rep Report) error {
	s := rep.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "\ndyno summary (session %s, %d samples, %s):\n", rep.SessionID, rep.Stats.Samples, rep.Stats.Duration.Humanized())
	if s.PowerRecords == 0 {
		fmt.Fprintln(tw, "- no power run detected")
	} else {
		fmt.Fprintf(tw, "- peak power:\t%.1f PS\tat %.0f rpm (%s)\n", s.PeakPowerKm, s.PeakPowerRpm, s.PeakPowerSpeed.Humanized())
		fmt.Fprintf(tw, "- loss at peak:\t%.2f PS\t\n", s.LossAtPeakKm)
		fmt.Fprintf(tw, "- peak torque:\t%.1f Nm\tat %.0f rpm\n", s.PeakTorqueNm, s.PeakTorqueRpm)
		fmt.Fprintf(tw, "- power run:\t%d records\tover %.2f s\n", s.PowerRecords, s.PowerRunSec)
	}
	if s.LossRecords == 0 {
		fmt.Fprintln(tw, "- no coast-down detected")
	} else {
		fmt.Fprintf(tw, "- coast-down:\t%.2f PS\t%d records over %.2f s\n", s.CoastDownKm, s.LossRecords, s.LossRunSec)
	}
	if rep.Stats.Skipped > 0 {
		fmt.Fprintf(tw, "- skipped input:\t%d\t\n", rep.Stats.Skipped)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}
