package clickhouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/google/uuid"
)

const createFactsTable = `
CREATE TABLE IF NOT EXISTS domain_facts (
	id UUID,
	stream_name String,
	type LowCardinality(String),
	aggregate_id String,
	data String,
	occurred_on DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (stream_name, occurred_on)`

// EventStore guarda los hechos de dominio en ClickHouse. Solo anexa.
type EventStore struct {
	db *sql.DB
}

// Open conecta con ClickHouse y crea la tabla si no existe.
func Open(ctx context.Context, addr, dbName string) (*EventStore, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	store := NewEventStore(conn)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createFactsTable); err != nil {
		return fmt.Errorf("create domain_facts: %w", err)
	}
	return nil
}

// Append inserta un hecho. ClickHouse prefiere lotes, así que usa el mismo
// camino tx + prepare que una inserción masiva.
func (s *EventStore) Append(ctx context.Context, fact domain.DomainFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO domain_facts (id, stream_name, type, aggregate_id, data, occurred_on)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx,
		fact.ID,
		fact.StreamName,
		fact.Type,
		fact.AggregateID,
		string(fact.Data),
		fact.OccurredOn.UTC(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to append fact %s: %w", fact.ID, err)
	}
	return tx.Commit()
}

// ReadStream devuelve los hechos de un stream en orden de ocurrencia.
func (s *EventStore) ReadStream(ctx context.Context, stream string) ([]domain.DomainFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_name, type, aggregate_id, data, occurred_on
		FROM domain_facts
		WHERE stream_name = ?
		ORDER BY occurred_on`, stream)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.DomainFact
	for rows.Next() {
		var (
			f    domain.DomainFact
			id   uuid.UUID
			data string
		)
		if err := rows.Scan(&id, &f.StreamName, &f.Type, &f.AggregateID, &data, &f.OccurredOn); err != nil {
			return nil, err
		}
		f.ID = id
		f.Data = []byte(data)
		f.OccurredOn = f.OccurredOn.UTC()
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *EventStore) Close() error {
	return s.db.Close()
}

var _ domain.EventStore = (*EventStore)(nil)
