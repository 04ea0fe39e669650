package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pq "github.com/lib/pq"

	"github.com/jose-valero/verification-bot/internal/domain"
)

type ApplicationRepo struct{ db *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

const applicationCols = `id, guild_id, applicant_id, reason, status, review_channel_id, review_message_id,
       created_at, resolved_at, resolved_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var (
		a      domain.Application
		status string
	)
	err := row.Scan(&a.ID, &a.GuildID, &a.ApplicantID, &a.Reason, &status,
		&a.ReviewCard.ChannelID, &a.ReviewCard.MessageID, &a.CreatedAt, &a.ResolvedAt, &a.ResolvedBy)
	a.Status = domain.Status(status)
	return a, err
}

func (r *ApplicationRepo) Create(ctx context.Context, a domain.Application) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO verification_applications
  (id, guild_id, applicant_id, reason, status, review_channel_id, review_message_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, a.ID, a.GuildID, a.ApplicantID, a.Reason, string(a.Status),
		a.ReviewCard.ChannelID, a.ReviewCard.MessageID, a.CreatedAt)
	return err
}

func (r *ApplicationRepo) Get(ctx context.Context, id string) (domain.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, `
SELECT `+applicationCols+`
  FROM verification_applications
 WHERE id = $1
`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, ErrNotFound
	}
	return a, err
}

// Resolve moves a pending row to a terminal status. A row that is no longer
// pending is left alone and reported as ErrConflict.
func (r *ApplicationRepo) Resolve(ctx context.Context, id string, status domain.Status, by string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE verification_applications
   SET status = $2, resolved_at = $3, resolved_by = $4
 WHERE id = $1 AND status = 'pending'
`, id, string(status), at, by)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *ApplicationRepo) ListPending(ctx context.Context, guildID string) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+applicationCols+`
  FROM verification_applications
 WHERE guild_id = $1 AND status = 'pending'
 ORDER BY created_at ASC
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PurgeResolved deletes terminal applications resolved before cutoff.
func (r *ApplicationRepo) PurgeResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := []string{string(domain.StatusApproved), string(domain.StatusRejected)}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM verification_applications
 WHERE status = ANY($1)
   AND resolved_at < $2
`, pq.Array(terminal), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
