package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/timecapsule/internal/persistence"
)

// MessageRepository implements persistence.MessageRepository using SQLite.
type MessageRepository struct {
	pool *ConnectionPool
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(pool *ConnectionPool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `id, owner_id, title, content, scheduled_date, created_at, recipient_email, category, is_delivered`

// CreateMessage inserts a new message.
func (r *MessageRepository) CreateMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.pool.db.ExecContext(ctx, query,
		message.ID,
		message.OwnerID,
		message.Title,
		message.Content,
		formatTime(message.ScheduledDate),
		formatTime(message.CreatedAt),
		message.RecipientEmail,
		message.Category,
		message.IsDelivered,
	)
	return mapError(err)
}

// ListMessages returns every message in insertion order.
func (r *MessageRepository) ListMessages(ctx context.Context) ([]persistence.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY seq ASC`
	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var messages []persistence.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return messages, nil
}

// UpdateMessage merges patch onto the stored message inside a transaction and
// returns the merged record.
func (r *MessageRepository) UpdateMessage(ctx context.Context, id string, patch persistence.MessagePatch) (persistence.Message, error) {
	var merged persistence.Message
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
		if err != nil {
			return err
		}

		merged = patch.Apply(current)
		query := `
			UPDATE messages
			SET title = ?, content = ?, scheduled_date = ?, recipient_email = ?, category = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			merged.Title,
			merged.Content,
			formatTime(merged.ScheduledDate),
			merged.RecipientEmail,
			merged.Category,
			id,
		)
		if err != nil {
			return mapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return persistence.Message{}, err
	}
	return merged, nil
}

// DeleteMessage removes a message by ID.
func (r *MessageRepository) DeleteMessage(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanMessage(row rowScanner) (persistence.Message, error) {
	var message persistence.Message
	var scheduledDate, createdAt string
	if err := row.Scan(
		&message.ID,
		&message.OwnerID,
		&message.Title,
		&message.Content,
		&scheduledDate,
		&createdAt,
		&message.RecipientEmail,
		&message.Category,
		&message.IsDelivered,
	); err != nil {
		return persistence.Message{}, mapError(err)
	}

	var err error
	if message.ScheduledDate, err = parseTime("scheduled_date", scheduledDate); err != nil {
		return persistence.Message{}, err
	}
	if message.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Message{}, err
	}
	return message, nil
}
