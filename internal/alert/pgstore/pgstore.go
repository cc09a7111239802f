// Package pgstore provides a PostgreSQL implementation of alert.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/klaxon/internal/alert/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts and timeline entries in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, severity, type, source, bureau, title, description,
	created_at, entity, impact, sla_due_at, status, assignee, metadata`

// Get retrieves an alert by ID.
func (s *Store) Get(ctx context.Context, id string) (*alert.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// Put inserts or updates an alert, keyed by ID. An upsert keeps the row's
// original insertion position and its current status and assignee, so a
// re-ingest can never race a concurrent Transition into reverting
// lifecycle state.
func (s *Store) Put(ctx context.Context, a *alert.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	entityJSON, impactJSON, metadataJSON, err := marshalParts(a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	query := `INSERT INTO alerts (
		id, severity, type, source, bureau, title, description,
		created_at, entity, impact, sla_due_at, status, assignee, metadata
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		severity    = EXCLUDED.severity,
		type        = EXCLUDED.type,
		source      = EXCLUDED.source,
		bureau      = EXCLUDED.bureau,
		title       = EXCLUDED.title,
		description = EXCLUDED.description,
		created_at  = EXCLUDED.created_at,
		entity      = EXCLUDED.entity,
		impact      = EXCLUDED.impact,
		sla_due_at  = EXCLUDED.sla_due_at,
		metadata    = EXCLUDED.metadata`

	_, err = s.pool.Exec(ctx, query,
		a.ID, string(a.Severity), a.Type, a.Source, a.Bureau, a.Title, a.Description,
		a.CreatedAt, entityJSON, impactJSON, a.SLADueAt, string(a.Status), a.Assignee, metadataJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// List returns all alerts in insertion order.
func (s *Store) List(ctx context.Context) ([]*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY seq`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// Transition updates the alert and appends its timeline entry in one
// transaction, guarded by the expected status. A concurrent status change
// surfaces as a conflict and writes nothing.
func (s *Store) Transition(ctx context.Context, a *alert.Alert, expected alert.Status, entry *alert.TimelineEntry) error {
	ctx, span := tracer.Start(ctx, "pgstore.Transition", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	entityJSON, impactJSON, metadataJSON, err := marshalParts(a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE alerts SET status = $1, assignee = $2, metadata = $3, entity = $4, impact = $5
		 WHERE id = $6 AND status = $7`,
		string(a.Status), a.Assignee, metadataJSON, entityJSON, impactJSON, a.ID, string(expected),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("check alert existence: %w", err)
		}
		if !exists {
			return alert.NewNotFound("alert", a.ID)
		}
		return alert.NewConflict(a.ID, expected)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO timeline (alert_id, actor, action, note, ts) VALUES ($1, $2, $3, $4, $5)`,
		entry.AlertID, entry.Actor, string(entry.Action), entry.Note, entry.Timestamp,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert timeline entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Timeline returns the alert's timeline entries in append order.
func (s *Store) Timeline(ctx context.Context, alertID string) ([]*alert.TimelineEntry, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Timeline", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT alert_id, actor, action, note, ts FROM timeline WHERE alert_id = $1 ORDER BY id`,
		alertID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var out []*alert.TimelineEntry
	for rows.Next() {
		var (
			e      alert.TimelineEntry
			action string
		)
		if err := rows.Scan(&e.AlertID, &e.Actor, &action, &e.Note, &e.Timestamp); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		e.Action = alert.Action(action)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return out, nil
}

func marshalParts(a *alert.Alert) (entity, impact, metadata []byte, err error) {
	if a.Entity != nil {
		entity, err = json.Marshal(a.Entity)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal entity: %w", err)
		}
	}
	if a.Impact != nil {
		impact, err = json.Marshal(a.Impact)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal impact: %w", err)
		}
	}
	if a.Metadata != nil {
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	return entity, impact, metadata, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var (
		a            alert.Alert
		severity     string
		status       string
		entityJSON   []byte
		impactJSON   []byte
		metadataJSON []byte
		slaDueAt     *time.Time
	)

	err := row.Scan(
		&a.ID, &severity, &a.Type, &a.Source, &a.Bureau, &a.Title, &a.Description,
		&a.CreatedAt, &entityJSON, &impactJSON, &slaDueAt, &status, &a.Assignee, &metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.Severity = alert.Severity(severity)
	a.Status = alert.Status(status)
	a.SLADueAt = slaDueAt

	if len(entityJSON) > 0 {
		a.Entity = &alert.Entity{}
		if err := json.Unmarshal(entityJSON, a.Entity); err != nil {
			return nil, fmt.Errorf("unmarshal entity: %w", err)
		}
	}
	if len(impactJSON) > 0 {
		a.Impact = &alert.Impact{}
		if err := json.Unmarshal(impactJSON, a.Impact); err != nil {
			return nil, fmt.Errorf("unmarshal impact: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &a, nil
}

// scanAlertRow scans a single row, returning (nil, nil) when no row matched.
func scanAlertRow(row pgx.Row) (*alert.Alert, error) {
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
