package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/attendance"
	"github.com/dmitrijs2005/garrison/internal/client/models"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func formatRecord(r *models.AttendanceRecord) string {
	if r.Open() {
		return fmt.Sprintf("%s  in %s  (present)", r.GlobalID, formatTime(r.CheckIn))
	}
	return fmt.Sprintf("%s  in %s  out %s  %.2f h", r.GlobalID, formatTime(r.CheckIn), formatTime(*r.CheckOut), *r.DurationHours)
}

// Register creates a person from a full name and a national id.
func (a *App) Register(ctx context.Context, _ []string) error {
	name, err := getSimpleText(a.reader, "Full name", a.out)
	if err != nil {
		return err
	}
	id, err := getSimpleText(a.reader, "National id", a.out)
	if err != nil {
		return err
	}

	p, err := a.store.CreatePerson(ctx, name, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s (%s)\n", p.FullName, p.NationalID)
	return nil
}

// Scan toggles the presence of a person.
func (a *App) Scan(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, "National id")
	if err != nil {
		return err
	}

	tr, err := a.machine.Toggle(ctx, id)
	if err != nil {
		return err
	}
	if tr.State == attendance.Present {
		fmt.Fprintf(a.out, "%s checked in at %s\n", tr.Person.FullName, formatTime(tr.Record.CheckIn))
		return nil
	}
	fmt.Fprintf(a.out, "%s checked out at %s (%.2f h)\n", tr.Person.FullName, formatTime(*tr.Record.CheckOut), *tr.Record.DurationHours)
	return nil
}

// State prints whether a person is present.
func (a *App) State(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, "National id")
	if err != nil {
		return err
	}
	st, err := a.machine.State(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, st)
	return nil
}

// Persons lists active persons.
func (a *App) Persons(ctx context.Context, _ []string) error {
	list, err := a.store.ListPersons(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No persons registered")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(a.out, "%-12s %s\n", p.NationalID, p.FullName)
	}
	return nil
}

// Rename corrects the name of a person.
func (a *App) Rename(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, "National id")
	if err != nil {
		return err
	}
	p, err := a.store.FindPersonByNationalID(ctx, id)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "New full name", a.out)
	if err != nil {
		return err
	}
	p, err = a.store.RenamePerson(ctx, p.GlobalID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed to %s\n", p.FullName)
	return nil
}

// Remove tombstones a person and closes any session left open.
func (a *App) Remove(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, "National id")
	if err != nil {
		return err
	}
	p, err := a.store.FindPersonByNationalID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := a.store.DeletePerson(ctx, p.GlobalID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s\n", p.FullName)
	return nil
}

// History prints the records of one person, newest first.
func (a *App) History(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, "National id")
	if err != nil {
		return err
	}
	p, recs, err := a.store.History(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s): %d records\n", p.FullName, p.NationalID, len(recs))
	for _, r := range recs {
		fmt.Fprintln(a.out, formatRecord(r))
	}
	return nil
}

// Stats prints per-person totals.
func (a *App) Stats(ctx context.Context, _ []string) error {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(a.out, "No closed records")
		return nil
	}
	for _, s := range stats {
		fmt.Fprintf(a.out, "%-12s %-24s %4d  total %7.2f h  avg %5.2f h\n",
			s.NationalID, s.FullName, s.Records, s.TotalHours, s.AverageHours)
	}
	return nil
}

// Latest prints the most recent records, 10 unless a count is given.
func (a *App) Latest(ctx context.Context, args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}
	recs, err := a.store.LatestRecords(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Fprintln(a.out, formatRecord(r))
	}
	return nil
}

// Pending prints the changes waiting for the next sync.
func (a *App) Pending(ctx context.Context, _ []string) error {
	envs, err := a.extractor.PendingChanges(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d pending changes\n", len(envs))
	for _, e := range envs {
		deleted := ""
		if e.Deleted {
			deleted = " (deleted)"
		}
		fmt.Fprintf(a.out, "  %-10s %s%s\n", e.Kind, e.GlobalID, deleted)
	}
	return nil
}

// Sync runs one sync cycle now.
func (a *App) Sync(ctx context.Context, _ []string) error {
	res, err := a.syncer.SyncOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Synced: pushed %d, acknowledged %d, applied %d, skipped %d\n",
		res.Pushed, res.Acknowledged, res.Applied, res.Stale+res.Conflicts)
	return nil
}

// Status prints the device id, the last sync time and the pending count.
func (a *App) Status(ctx context.Context, _ []string) error {
	id, err := a.store.DeviceID(ctx)
	if err != nil {
		return err
	}
	last, err := a.store.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	envs, err := a.extractor.PendingChanges(ctx)
	if err != nil {
		return err
	}

	lastStr := "never"
	if !last.IsZero() {
		lastStr = formatTime(last)
	}
	fmt.Fprintf(a.out, "device %s\nserver %s\nlast sync %s\npending %d\n", id, a.config.ServerURL, lastStr, len(envs))
	return nil
}
