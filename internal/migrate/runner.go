package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// ErrTagNotFound is returned by Rollback when the requested target tag has no
// journal entry. The whole rollback aborts before any database action.
var ErrTagNotFound = errors.New("migration not found")

// Executor is the SQL execution capability the runner consumes. *sql.DB
// satisfies it. The runner never manages the connection's lifecycle; the
// caller opens it before the run and closes it after, on every exit path.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Runner applies pending, ordered schema migrations and supports bounded
// rollback. Applied state lives in the journal next to the migration files.
// Execution is strictly sequential; later migrations may depend on earlier
// schema state.
type Runner struct {
	exec   Executor
	dir    string
	locker Locker
	logger *slog.Logger
}

// NewRunner creates a Runner over the given execution capability and
// migrations directory. A nil locker falls back to a process-local lock and a
// nil logger falls back to slog.Default().
func NewRunner(exec Executor, dir string, locker Locker, logger *slog.Logger) *Runner {
	if locker == nil {
		locker = NewProcessLock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{exec: exec, dir: dir, locker: locker, logger: logger}
}

// ApplyResult reports how far an apply run got. Applied <= Pending; the two
// differ only when the run failed partway.
type ApplyResult struct {
	Applied int
	Pending int
}

// Apply executes every pending migration in lexicographic tag order, recording
// each one in the journal immediately after it succeeds so a crash between
// migrations never replays completed work.
//
// Progress is only durable when a journal document already exists on disk
// (see LoadJournal); with a missing journal the migrations still execute but
// nothing is recorded. `migrate init` creates the scaffold.
func (r *Runner) Apply(ctx context.Context) (ApplyResult, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	defer unlock()

	journal, err := LoadJournal(r.dir)
	persist := true
	if errors.Is(err, ErrJournalNotFound) {
		// Never initialized. Migrations still run, but without a journal
		// scaffold nothing is recorded and the next run will re-attempt them.
		r.logger.Warn("journal not found; applied migrations will not be recorded",
			"path", JournalPath(r.dir))
		journal = nil
		persist = false
	} else if err != nil {
		return ApplyResult{}, err
	}

	applied := journal.AppliedTags()
	var pending []File
	for _, f := range Discover(r.dir) {
		if !applied[f.Tag] {
			pending = append(pending, f)
		}
	}

	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return ApplyResult{}, nil
	}

	result := ApplyResult{Pending: len(pending)}
	for _, f := range pending {
		start := time.Now()

		sqlText, err := f.ReadSQL()
		if err != nil {
			r.logger.Error("migration unreadable", "tag", f.Tag, "error", err)
			return result, fmt.Errorf("%w (%d/%d migrations applied)", err, result.Applied, result.Pending)
		}

		if _, err := r.exec.ExecContext(ctx, sqlText); err != nil {
			r.logger.Error("migration failed",
				"tag", f.Tag,
				"elapsed", time.Since(start),
				"error", err)
			return result, fmt.Errorf("apply %s: %w (%d/%d migrations applied)", f.Tag, err, result.Applied, result.Pending)
		}

		if persist {
			journal.Append(f.Tag, time.Now().UnixMilli())
			if err := journal.Save(r.dir); err != nil {
				// The migration itself is committed; only the record is lost.
				r.logger.Error("journal write failed", "tag", f.Tag, "error", err)
				return result, fmt.Errorf("record %s: %w (%d/%d migrations applied)", f.Tag, err, result.Applied, result.Pending)
			}
		}

		result.Applied++
		r.logger.Info("migration applied",
			"tag", f.Tag,
			"elapsed", time.Since(start))
	}

	r.logger.Info("apply complete", "applied", result.Applied)
	return result, nil
}

// RollbackTarget selects which journal entries to undo. Tag undoes everything
// strictly after the named migration (the tag itself stays applied); Count
// undoes the N most recent entries; with neither set the single most recent
// entry is undone.
type RollbackTarget struct {
	Tag   string
	Count int
}

// RollbackResult reports how far a rollback run got.
type RollbackResult struct {
	RolledBack int
	Selected   int
}

// Rollback undoes journal entries in reverse application order, most recent
// first, regardless of how they were selected. Each migration's undo is its
// paired <tag>.down.sql file. After each successful undo the entry is removed
// from the journal and the journal persisted immediately.
func (r *Runner) Rollback(ctx context.Context, target RollbackTarget) (RollbackResult, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return RollbackResult{}, err
	}
	defer unlock()

	journal, err := LoadJournal(r.dir)
	if errors.Is(err, ErrJournalNotFound) {
		if target.Tag != "" {
			return RollbackResult{}, fmt.Errorf("%w: %s", ErrTagNotFound, target.Tag)
		}
		r.logger.Info("nothing to roll back")
		return RollbackResult{}, nil
	}
	if err != nil {
		return RollbackResult{}, err
	}

	toRollback, err := selectEntries(journal, target)
	if err != nil {
		return RollbackResult{}, err
	}
	if len(toRollback) == 0 {
		r.logger.Info("nothing to roll back")
		return RollbackResult{}, nil
	}

	result := RollbackResult{Selected: len(toRollback)}
	for i := len(toRollback) - 1; i >= 0; i-- {
		entry := toRollback[i]
		start := time.Now()
		f := fileForTag(r.dir, entry.Tag)

		downSQL, err := f.ReadDownSQL()
		if err != nil {
			r.logger.Error("down migration unreadable", "tag", entry.Tag, "error", err)
			return result, fmt.Errorf("%w (%d/%d migrations rolled back)", err, result.RolledBack, result.Selected)
		}

		if _, err := r.exec.ExecContext(ctx, downSQL); err != nil {
			r.logger.Error("rollback failed",
				"tag", entry.Tag,
				"elapsed", time.Since(start),
				"error", err)
			return result, fmt.Errorf("rollback %s: %w (%d/%d migrations rolled back)", entry.Tag, err, result.RolledBack, result.Selected)
		}

		journal.Remove(entry.Tag)
		if err := journal.Save(r.dir); err != nil {
			r.logger.Error("journal write failed", "tag", entry.Tag, "error", err)
			return result, fmt.Errorf("record rollback of %s: %w (%d/%d migrations rolled back)", entry.Tag, err, result.RolledBack, result.Selected)
		}

		result.RolledBack++
		r.logger.Info("migration rolled back",
			"tag", entry.Tag,
			"elapsed", time.Since(start))
	}

	r.logger.Info("rollback complete", "rolled_back", result.RolledBack)
	return result, nil
}

// selectEntries picks the journal entries to undo, oldest-first as stored.
// Execution later walks the slice in reverse.
func selectEntries(journal *Journal, target RollbackTarget) ([]Entry, error) {
	entries := journal.Entries

	switch {
	case target.Tag != "":
		idx := journal.IndexOf(target.Tag)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTagNotFound, target.Tag)
		}
		return entries[idx+1:], nil
	case target.Count > 0:
		n := target.Count
		if n > len(entries) {
			n = len(entries)
		}
		return entries[len(entries)-n:], nil
	default:
		if len(entries) == 0 {
			return nil, nil
		}
		return entries[len(entries)-1:], nil
	}
}

// fileForTag derives the migration file for a journal entry. The tag is the
// filename minus its extension by construction.
func fileForTag(dir, tag string) File {
	return File{Tag: tag, Path: filepath.Join(dir, tag+sqlExt)}
}
