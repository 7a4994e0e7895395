package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/querysql"
)

type sqlTx struct {
	tx       *sql.Tx
	compiler *querysql.SQLCompiler
}

func (t *sqlTx) Find(ctx context.Context, p queryir.Predicate) ([]ir.Message, error) {
	query, params, err := t.compiler.CompileSelect(p)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []ir.Message{}
	for rows.Next() {
		var id, flowID, identifier, content string
		if err := rows.Scan(&id, &flowID, &identifier, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg, err := fromColumns(id, flowID, identifier, content)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Identifier text does not sort numerically; order in Go.
	ir.SortMessages(msgs)
	return msgs, nil
}

func (t *sqlTx) FindOne(ctx context.Context, p queryir.Predicate) (ir.Message, bool, error) {
	msgs, err := t.Find(ctx, p)
	if err != nil || len(msgs) == 0 {
		return ir.Message{}, false, err
	}
	return msgs[0], true, nil
}

func (t *sqlTx) Count(ctx context.Context, p queryir.Predicate) (int, error) {
	where, params, err := t.compiler.CompileWhere(p)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", querysql.Table, where)
	if err := t.tx.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (t *sqlTx) InsertOne(ctx context.Context, msg ir.Message) error {
	r, err := toRow(msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO messages (id, flow_id, identifier, segments, depth, content)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.FlowID, r.Identifier, r.Segments, r.Depth, r.Content)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("insert message %s: %w", msg.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateMany(ctx context.Context, p queryir.Predicate, fn Transform) (int, error) {
	// Snapshot the match set before writing anything.
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("update many: %w", err)
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE messages
		SET flow_id = ?, identifier = ?, segments = ?, depth = ?, content = ?
		WHERE id = ?
	`)
	if err != nil {
		return 0, fmt.Errorf("update many: prepare: %w", err)
	}
	defer stmt.Close()

	for _, msg := range matches {
		updated, err := ApplyTransform(fn, msg)
		if err != nil {
			return 0, err
		}
		r, err := toRow(updated)
		if err != nil {
			return 0, fmt.Errorf("update many: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.FlowID, r.Identifier, r.Segments, r.Depth, r.Content, r.ID); err != nil {
			return 0, fmt.Errorf("update message %s: %w", r.ID, err)
		}
	}
	return len(matches), nil
}

func (t *sqlTx) DeleteOne(ctx context.Context, p queryir.Predicate) (int, error) {
	msg, ok, err := t.FindOne(ctx, p)
	if err != nil || !ok {
		return 0, err
	}
	return t.DeleteMany(ctx, queryir.IDEquals{ID: msg.ID})
}

func (t *sqlTx) DeleteMany(ctx context.Context, p queryir.Predicate) (int, error) {
	query, params, err := t.compiler.CompileDelete(p)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete messages: rows affected: %w", err)
	}
	return int(n), nil
}
