package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/catalogsync/internal/shared/domain"
	"github.com/google/uuid"
)

// OutboxRepo implementa sharedDomain.OutboxRepository para PostgreSQL y SQLite.
type OutboxRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewOutboxRepo(db *sql.DB, dialect Dialect) *OutboxRepo {
	return &OutboxRepo{db: db, dialect: dialect}
}

// Append inserta el mensaje usando la transacción del contexto. Sin ella no escribe nada.
func (r *OutboxRepo) Append(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return sharedDomain.ErrNoTransaction
	}

	_, err := tx.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO outbox_messages (id, type, content, occurred_on, processed_on)
		 VALUES (?, ?, ?, ?, NULL)`),
		msg.ID.String(), msg.Type, string(msg.Payload), msg.OccurredOn.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

func (r *OutboxRepo) FetchPending(ctx context.Context, offset, limit int) ([]sharedDomain.OutboxMessage, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT id, type, content, occurred_on
		 FROM outbox_messages
		 WHERE processed_on IS NULL
		 ORDER BY occurred_on ASC, id ASC
		 LIMIT ? OFFSET ?`), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox: %w", err)
	}
	defer rows.Close()

	var msgs []sharedDomain.OutboxMessage
	for rows.Next() {
		var (
			msg     sharedDomain.OutboxMessage
			rawID   string
			content string
		)
		if err := rows.Scan(&rawID, &msg.Type, &content, &msg.OccurredOn); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		msg.ID = id
		msg.Payload = []byte(content)
		msg.OccurredOn = msg.OccurredOn.UTC()

		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkProcessed sella processed_on. Repetirlo sobre un mensaje ya procesado no cambia nada.
func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE outbox_messages SET processed_on = ? WHERE id = ? AND processed_on IS NULL`),
		at.UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT COUNT(*) FROM outbox_messages WHERE id = ?`), id.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
	}
	return nil
}

func (r *OutboxRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_messages WHERE processed_on IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox: %w", err)
	}
	return n, nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxRepository = (*OutboxRepo)(nil)
