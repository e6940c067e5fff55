package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/store"
)

type handshakeNoncesRepo struct {
	db *sql.DB
}

func (r *handshakeNoncesRepo) Consume(ctx context.Context, nonce string, issuedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO handshake_nonces (nonce, issued_at, consumed_at) VALUES (?, ?, ?)`,
		nonce, issuedAt.UTC().Unix(), time.Now().UTC().Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *handshakeNoncesRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM handshake_nonces WHERE issued_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
