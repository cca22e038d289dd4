package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// SQLite trace schema. Events are ordered by seq within an instruction.
//
//	CREATE TABLE insts (
//	    id INTEGER PRIMARY KEY,
//	    workgroup_id INTEGER, wavefront_id INTEGER, simd_id INTEGER,
//	    asm TEXT NOT NULL
//	);
//	CREATE TABLE inst_events (
//	    inst_id INTEGER NOT NULL REFERENCES insts(id),
//	    seq INTEGER NOT NULL,
//	    stage INTEGER NOT NULL,
//	    time REAL NOT NULL
//	);

// SQLiteReader provides read access to a SQLite trace database.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite trace database for reading.
func NewSQLiteReader(path string) (*SQLiteReader, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	return &SQLiteReader{db: db, path: path}, nil
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadTrace reads every instruction with its events, in instruction id order.
// An instruction without event rows gets an empty, present event list.
func (r *SQLiteReader) LoadTrace(ctx context.Context) ([]model.RawInstruction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workgroup_id, wavefront_id, simd_id, asm
		FROM insts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query instructions: %w", err)
	}
	defer rows.Close()

	var out []model.RawInstruction
	position := make(map[int64]int)
	for rows.Next() {
		var id int64
		var wg, wf, simd sql.NullInt64
		var inst model.RawInstruction
		if err := rows.Scan(&id, &wg, &wf, &simd, &inst.Asm); err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		inst.WorkgroupID = nullableInt(wg)
		inst.WavefrontID = nullableInt(wf)
		inst.SIMDID = nullableInt(simd)
		inst.Events = []model.RawEvent{}

		position[id] = len(out)
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}

	if err := r.loadEvents(ctx, out, position); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteReader) loadEvents(ctx context.Context, out []model.RawInstruction, position map[int64]int) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT inst_id, stage, time
		FROM inst_events
		ORDER BY inst_id, seq
	`)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var instID int64
		var code int
		var tm float64
		if err := rows.Scan(&instID, &code, &tm); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		i, ok := position[instID]
		if !ok {
			// Event rows for instructions that do not exist are ignored.
			continue
		}
		out[i].Events = append(out[i].Events, model.RawEvent{Stage: stage.Code(code), Time: tm})
	}
	return rows.Err()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
