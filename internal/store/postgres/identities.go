package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/eduvision/attendance/internal/store"
)

func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, name, embedding, sample_count, enrolled_at
		FROM identities
	`)
	if err != nil {
		return nil, wrap("list identities", err)
	}
	defer rows.Close()

	var identities []store.Identity
	for rows.Next() {
		var (
			identity store.Identity
			vec      pgvector.Vector
		)
		if err := rows.Scan(&identity.ID, &identity.Name, &vec, &identity.SampleCount, &identity.EnrolledAt); err != nil {
			return nil, wrap("scan identity", err)
		}
		identity.Embedding = vec.Slice()
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list identities", err)
	}
	return identities, nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (*store.Identity, error) {
	var (
		identity store.Identity
		vec      pgvector.Vector
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT identity_id, name, embedding, sample_count, enrolled_at
		FROM identities
		WHERE identity_id = $1
	`, id).Scan(&identity.ID, &identity.Name, &vec, &identity.SampleCount, &identity.EnrolledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrIdentityNotFound
	}
	if err != nil {
		return nil, wrap("get identity", err)
	}
	identity.Embedding = vec.Slice()
	return &identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity store.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (identity_id, name, embedding, sample_count, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) DO NOTHING
	`, identity.ID, identity.Name, pgvector.NewVector(identity.Embedding), identity.SampleCount, identity.EnrolledAt)
	if err != nil {
		return wrap("insert identity", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("insert identity", err)
	}
	if affected == 0 {
		return store.ErrIdentityExists
	}
	return nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = $1`, id)
	if err != nil {
		return wrap("delete identity", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("delete identity", err)
	}
	if affected == 0 {
		return store.ErrIdentityNotFound
	}
	return nil
}
