package sink

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

const schema = `
CREATE TABLE IF NOT EXISTS methods (
	project               TEXT    NOT NULL,
	method_id             TEXT    NOT NULL,
	method_name           TEXT    NOT NULL,
	"release"             TEXT    NOT NULL,
	loc                   INTEGER NOT NULL,
	cyclomatic_complexity INTEGER NOT NULL,
	parameter_count       INTEGER NOT NULL,
	duplication           INTEGER NOT NULL,
	nr                    INTEGER NOT NULL,
	nauth                 INTEGER NOT NULL,
	stmt_added            INTEGER NOT NULL,
	stmt_deleted          INTEGER NOT NULL,
	max_churn             INTEGER NOT NULL,
	avg_churn             REAL    NOT NULL,
	is_buggy              TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_methods_release ON methods(project, "release");
`

const insertMethod = `
INSERT INTO methods (
	project, method_id, method_name, "release", loc, cyclomatic_complexity, parameter_count,
	duplication, nr, nauth, stmt_added, stmt_deleted, max_churn, avg_churn, is_buggy
) VALUES (
	:project, :method_id, :method_name, :release, :loc, :cyclomatic_complexity, :parameter_count,
	:duplication, :nr, :nauth, :stmt_added, :stmt_deleted, :max_churn, :avg_churn, :is_buggy
)`

// methodRecord is the database shape of a row.
type methodRecord struct {
	Project     string  `db:"project"`
	MethodID    string  `db:"method_id"`
	MethodName  string  `db:"method_name"`
	Release     string  `db:"release"`
	LOC         int     `db:"loc"`
	Complexity  int     `db:"cyclomatic_complexity"`
	Parameters  int     `db:"parameter_count"`
	Duplication int     `db:"duplication"`
	NR          int     `db:"nr"`
	NAuth       int     `db:"nauth"`
	Added       int     `db:"stmt_added"`
	Deleted     int     `db:"stmt_deleted"`
	MaxChurn    int     `db:"max_churn"`
	AvgChurn    float64 `db:"avg_churn"`
	IsBuggy     string  `db:"is_buggy"`
}

func recordOf(r dataset.Row) methodRecord {
	return methodRecord{
		Project:     r.Project,
		MethodID:    r.MethodID,
		MethodName:  r.MethodName,
		Release:     r.Release,
		LOC:         r.LOC,
		Complexity:  r.Complexity,
		Parameters:  r.Parameters,
		Duplication: r.Duplication,
		NR:          r.NR,
		NAuth:       r.NAuth,
		Added:       r.Added,
		Deleted:     r.Deleted,
		MaxChurn:    r.MaxChurn,
		AvgChurn:    r.AvgChurn,
		IsBuggy:     r.BuggyLabel(),
	}
}

// SQLite stores one project's rows in a methods table, one transaction per
// release.
type SQLite struct {
	db      *sqlx.DB
	project string
}

// OpenSQLite opens or creates the database at path for project and ensures
// the schema.
func OpenSQLite(path, project string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLite{db: db, project: project}, nil
}

// WriteRelease replaces the stored rows of the release with rows. An empty
// batch clears the release.
func (s *SQLite) WriteRelease(ctx context.Context, rel release.Release, rows []dataset.Row) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin release %s: %w", rel.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM methods WHERE project = ? AND "release" = ?`,
		s.project, rel.Name); err != nil {
		return fmt.Errorf("clear release %s: %w", rel.Name, err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertMethod)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, recordOf(r)); err != nil {
			return fmt.Errorf("insert %s: %w", r.MethodName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit release %s: %w", rel.Name, err)
	}

	return nil
}

// Count returns the number of stored rows of a release.
func (s *SQLite) Count(ctx context.Context, project, releaseName string) (int, error) {
	var n int

	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM methods WHERE project = ? AND "release" = ?`, project, releaseName)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}

	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
