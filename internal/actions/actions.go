// Package actions implements the small persistence algebra that decouples
// venue parsing from storage: every listener emits actions, and only the
// orchestrator (or the snapshot generator) ever executes them against a
// store.
package actions

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/nadircryptocurrency/antalla/internal/models"
)

// Entity is anything an InsertAction/UpdateAction can address: a table name,
// a primary-key projection, and the set of columns it carries. Only columns
// present in Columns() participate in a merge against an existing row.
type Entity interface {
	TableName() string
	PrimaryKey() map[string]interface{}
	Columns() map[string]interface{}
}

// Tx is the transactional handle an Action executes against. Store
// implementations provide it; actions never talk to *sql.DB directly.
type Tx interface {
	Upsert(ctx context.Context, e Entity) error
	UpdateFields(ctx context.Context, table string, key map[string]interface{}, fields map[string]interface{}) error
	CancelOrder(ctx context.Context, key models.OrderKey, cancelledAt time.Time) error
}

// Action is a persistence intent, decoupled from when it is committed.
type Action interface {
	Execute(ctx context.Context, tx Tx) error
}

// InsertAction adds a batch of entities to the pending transaction.
// Duplicates by primary key are coalesced: last write wins within the batch.
type InsertAction struct {
	Entities []Entity
}

// NewInsertAction builds an InsertAction, coalescing duplicate primary keys
// so that only the last entity for a given key survives.
func NewInsertAction(entities []Entity) *InsertAction {
	return &InsertAction{Entities: coalesce(entities)}
}

func coalesce(entities []Entity) []Entity {
	if len(entities) == 0 {
		return nil
	}
	order := make([]string, 0, len(entities))
	byKey := make(map[string]Entity, len(entities))
	for _, e := range entities {
		k := keyString(e)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = e
	}
	out := make([]Entity, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// keyString builds a deterministic identity string from an entity's
// primary key, sorting the field names — map iteration order is randomized
// per Go spec, and coalesce relies on equal keys producing equal strings.
func keyString(e Entity) string {
	pk := e.PrimaryKey()
	names := make([]string, 0, len(pk))
	for k := range pk {
		names = append(names, k)
	}
	sort.Strings(names)

	s := e.TableName() + "|"
	for _, k := range names {
		s += k + "=" + toString(pk[k]) + ";"
	}
	return s
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Execute applies the insert batch within the caller's transaction.
func (a *InsertAction) Execute(ctx context.Context, tx Tx) error {
	for _, e := range a.Entities {
		if err := tx.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAction mutates fields of the row addressed by (table, key). It is a
// no-op if the row is absent.
type UpdateAction struct {
	Table  string
	Key    map[string]interface{}
	Fields map[string]interface{}
}

// Execute applies the field delta within the caller's transaction.
func (a *UpdateAction) Execute(ctx context.Context, tx Tx) error {
	return tx.UpdateFields(ctx, a.Table, a.Key, a.Fields)
}

// CancelAction sets cancelled_at on the Order addressed by key.
type CancelAction struct {
	Key         models.OrderKey
	CancelledAt time.Time
}

// Execute applies the cancellation within the caller's transaction.
func (a *CancelAction) Execute(ctx context.Context, tx Tx) error {
	return tx.CancelOrder(ctx, a.Key, a.CancelledAt)
}
