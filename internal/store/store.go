// Package store is the durable backing for entities and events. It exposes
// transactional batch commit to the orchestrator/snapshot generator and a
// parameterized query escape hatch for the snapshot generator's book
// reconstruction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Transaction is the handle actions execute against, extended with the
// commit/rollback lifecycle the orchestrator and snapshot generator drive.
type Transaction interface {
	actions.Tx
	Commit() error
	Rollback() error
}

// Store is the durable backing for entities and events.
type Store interface {
	// Begin opens a new transaction.
	Begin(ctx context.Context) (Transaction, error)
	// Execute runs a parameterized query and returns the raw rows, for the
	// snapshot generator's point-in-time book reconstruction.
	Execute(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close() error
}

// PostgresStore is the Store implementation backing production use.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// Open connects to Postgres at dsn and verifies connectivity.
func Open(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db, tracer: otel.Tracer("antalla.store")}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Execute runs a parameterized query, used by the snapshot generator.
func (s *PostgresStore) Execute(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Begin opens a new transaction, tracing the span the caller will later end
// via Commit/Rollback.
func (s *PostgresStore) Begin(ctx context.Context) (Transaction, error) {
	batchID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Batch", trace.WithAttributes(attribute.String("batch_id", batchID)))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("begin transaction %s: %w", batchID, err)
	}
	return &postgresTx{tx: tx, span: span, batchID: batchID}, nil
}

type postgresTx struct {
	tx      *sql.Tx
	span    trace.Span
	batchID string // correlates this commit's span with its log lines
}

// Upsert inserts e, merging onto an existing row by primary key: only the
// columns e carries overwrite existing values.
func (t *postgresTx) Upsert(ctx context.Context, e actions.Entity) error {
	cols := e.Columns()
	pk := e.PrimaryKey()

	names := sortedKeys(cols)
	pkNames := sortedKeys(pk)

	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, n := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = cols[n]
	}

	conflictCols := joinComma(pkNames)
	setClauses := make([]string, 0, len(names))
	for _, n := range names {
		if contains(pkNames, n) {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", n, n))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		e.TableName(), joinComma(names), joinComma(placeholders), conflictCols,
	)
	if len(setClauses) == 0 {
		query += " DO NOTHING"
	} else {
		query += " DO UPDATE SET " + joinComma(setClauses)
	}

	_, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.TableName(), err)
	}
	return nil
}

// UpdateFields mutates fields of the row addressed by (table, key); a
// no-op (not an error) if the row is absent.
func (t *postgresTx) UpdateFields(ctx context.Context, table string, key map[string]interface{}, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	names := sortedKeys(fields)
	setClauses := make([]string, len(names))
	args := make([]interface{}, 0, len(names)+len(key))
	for i, n := range names {
		setClauses[i] = fmt.Sprintf("%s = $%d", n, i+1)
		args = append(args, fields[n])
	}
	keyNames := sortedKeys(key)
	whereClauses := make([]string, len(keyNames))
	for i, n := range keyNames {
		whereClauses[i] = fmt.Sprintf("%s = $%d", n, len(names)+i+1)
		args = append(args, key[n])
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, joinComma(setClauses), joinAnd(whereClauses))
	_, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// CancelOrder sets cancelled_at on the Order addressed by key.
func (t *postgresTx) CancelOrder(ctx context.Context, key models.OrderKey, cancelledAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET cancelled_at = $1 WHERE exchange_id = $2 AND exchange_order_id = $3",
		cancelledAt, key.ExchangeID, key.ExchangeOrderID,
	)
	if err != nil {
		return fmt.Errorf("cancel order %d/%s: %w", key.ExchangeID, key.ExchangeOrderID, err)
	}
	return nil
}

func (t *postgresTx) Commit() error {
	defer t.span.End()
	if err := t.tx.Commit(); err != nil {
		t.span.RecordError(err)
		return fmt.Errorf("commit batch %s: %w", t.batchID, err)
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	defer t.span.End()
	t.span.SetAttributes(attribute.Bool("rolled_back", true))
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinComma(ss []string) string { return join(ss, ", ") }
func joinAnd(ss []string) string   { return join(ss, " AND ") }

func join(ss []string, sep string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
