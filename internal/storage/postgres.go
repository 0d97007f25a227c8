package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"affiliate-gateway/internal/config"
)

type Store struct {
	pool    *pgxpool.Pool
	channel string
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, channel: cfg.Listener.Channel}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS user_campaigns (
	id            uuid PRIMARY KEY,
	campaign_id   text NOT NULL,
	user_id       uuid NOT NULL,
	offer_id      text NOT NULL,
	country_code  text NOT NULL,
	target_domain text,
	channel       text NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS user_campaigns_user_id_idx ON user_campaigns (user_id);

CREATE TABLE IF NOT EXISTS profiles (
	user_id       uuid PRIMARY KEY,
	platforms     text[] NOT NULL DEFAULT '{}',
	username      text NOT NULL DEFAULT '',
	password_text text NOT NULL DEFAULT '',
	updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admin_users (
	user_id uuid PRIMARY KEY
);

CREATE OR REPLACE FUNCTION is_admin(uid uuid) RETURNS boolean
LANGUAGE sql STABLE AS $$
	SELECT EXISTS (SELECT 1 FROM admin_users WHERE user_id = uid)
$$;
`

// Migrate creates the tables and the privilege function if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) RecordCampaign(ctx context.Context, rec CampaignRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_campaigns (id, campaign_id, user_id, offer_id, country_code, target_domain, channel)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, rec.ID, rec.CampaignID, rec.UserID, rec.OfferID, rec.CountryCode, rec.TargetDomain, rec.Channel)
	if err != nil {
		return fmt.Errorf("insert user campaign: %w", err)
	}
	return nil
}

// CampaignsForUser lists the campaigns a user created, newest first.
func (s *Store) CampaignsForUser(ctx context.Context, userID uuid.UUID) ([]CampaignRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_id, user_id, offer_id, country_code, COALESCE(target_domain, ''), channel, created_at
		FROM user_campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user campaigns: %w", err)
	}
	defer rows.Close()

	var out []CampaignRecord
	for rows.Next() {
		var r CampaignRecord
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.UserID, &r.OfferID, &r.CountryCode, &r.TargetDomain, &r.Channel, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p := Profile{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT platforms, username, password_text FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.Platforms, &p.Username, &p.PasswordText)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if p.Platforms == nil {
		p.Platforms = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, platforms, username, password_text, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET platforms = EXCLUDED.platforms,
		    username = EXCLUDED.username,
		    password_text = EXCLUDED.password_text,
		    updated_at = now()
	`, p.UserID, p.Platforms, p.Username, p.PasswordText)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// IsAdmin runs the database privilege check for a user.
func (s *Store) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT is_admin($1)`, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("is_admin: %w", err)
	}
	return ok, nil
}

func (s *Store) ListenChannel() string {
	if s.channel == "" {
		return "session_events"
	}
	return s.channel
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
