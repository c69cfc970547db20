package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tryonWorker/worker/models"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// sessionTable maps a channel to its session table.
func sessionTable(channel models.Channel) string {
	if channel == models.ChannelB2B {
		return "store_generation_sessions"
	}
	return "generation_sessions"
}

// ownerColumn maps a channel to the authoritative owner-identity column.
func ownerColumn(channel models.Channel) string {
	if channel == models.ChannelB2B {
		return "store_id"
	}
	return "user_id"
}

func (s *PostgresStore) GetSession(ctx context.Context, channel models.Channel, id string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, status, COALESCE(result_image_url, ''), COALESCE(error_message, '')
		FROM %s
		WHERE id = $1
	`, ownerColumn(channel), sessionTable(channel))

	var session models.Session
	err := s.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.OwnerID,
		&session.Status,
		&session.ResultImageURL,
		&session.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &session, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, channel models.Channel, id string, update models.SessionUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, error_message = $2, updated_at = NOW()
	`, sessionTable(channel))

	args := []any{update.Status, update.ErrorMessage}

	if update.ResultImageURL != "" {
		query += `, result_image_url = $3 WHERE id = $4`
		args = append(args, update.ResultImageURL, id)
	} else {
		query += ` WHERE id = $3`
		args = append(args, id)
	}

	result, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (s *PostgresStore) ListStuckSessions(ctx context.Context, channel models.Channel) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, status, COALESCE(result_image_url, ''), COALESCE(error_message, '')
		FROM %s
		WHERE status IN ($1, $2)
	`, ownerColumn(channel), sessionTable(channel))

	rows, err := s.db.Query(ctx, query, models.StatusQueued, models.StatusProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.OwnerID,
			&session.Status,
			&session.ResultImageURL,
			&session.ErrorMessage,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// RefundCredit calls the refund_credits database function with the
// owner-identity parameter the channel dictates.
func (s *PostgresStore) RefundCredit(ctx context.Context, channel models.Channel, ownerID string, amount int) error {
	query := fmt.Sprintf(`SELECT refund_credits(p_%s => $1, p_amount => $2)`, ownerColumn(channel))

	_, err := s.db.Exec(ctx, query, ownerID, amount)
	return err
}
