package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ingestion path.
var preparedStatements = map[string]string{
	"get_lead":        `SELECT id, tenant_id, source, status, payload, created_at, updated_at FROM leads WHERE id = $1 AND tenant_id = $2`,
	"insert_lead":     `INSERT INTO leads (id, tenant_id, source, status, email, phone, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"insert_event":    `INSERT INTO lead_events (id, lead_id, from_status, to_status, actor, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"tenant_settings": `SELECT tenant_id, key, value FROM tenant_settings WHERE tenant_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'NEW',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lead_events (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id     TEXT NOT NULL REFERENCES leads(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tenant_settings (
	tenant_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, key)
);

CREATE TABLE IF NOT EXISTS settings_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	old_value  JSONB,
	new_value  JSONB NOT NULL,
	actor      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_tenant_created ON leads(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_email ON leads(tenant_id, email);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_phone ON leads(tenant_id, phone);
CREATE INDEX IF NOT EXISTS idx_lead_events_lead ON lead_events(lead_id, created_at);
CREATE INDEX IF NOT EXISTS idx_settings_events_tenant ON settings_events(tenant_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) CreateLead(ctx context.Context, tenantID string, payload model.LeadPayload) (*model.Lead, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal payload")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin create lead")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO leads (id, tenant_id, source, status, email, phone, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, tenantID, payload.Source, string(model.LeadStatusNew),
		strings.ToLower(payload.Email), payload.Phone, payloadJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO lead_events (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), id, "", string(model.LeadStatusNew), "ingest", now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert creation event")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit create lead")
	}

	return &model.Lead{
		ID:        id,
		TenantID:  tenantID,
		Source:    payload.Source,
		Status:    model.LeadStatusNew,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error) {
	return scanPgLead(s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, source, status, payload, created_at, updated_at
		 FROM leads WHERE id = $1 AND tenant_id = $2`,
		leadID, tenantID,
	))
}

func (s *PostgresStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, tenant_id, source, status, payload, created_at, updated_at
	          FROM leads WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) FindRecentByIdentity(ctx context.Context, tenantID, email, phone string, window time.Duration) (*model.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, nil
	}

	// Only NEW leads collapse into an earlier inquiry. Once a lead has
	// been contacted, a fresh submission from the same person is a new lead.
	query := `SELECT id, tenant_id, source, status, payload, created_at, updated_at
	          FROM leads WHERE tenant_id = $1 AND status = 'NEW' AND created_at >= $2`
	args := []any{tenantID, time.Now().UTC().Add(-window)}

	switch {
	case email != "" && phone != "":
		query += ` AND (email = $3 OR phone = $4)`
		args = append(args, email, phone)
	case email != "":
		query += ` AND email = $3`
		args = append(args, email)
	default:
		query += ` AND phone = $3`
		args = append(args, phone)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	l, err := scanPgLead(s.pool.QueryRow(ctx, query, args...))
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return l, err
}

func (s *PostgresStore) ChangeStatus(ctx context.Context, tenantID, leadID string, to model.LeadStatus, actor string) (*model.Lead, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: begin change status")
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE serializes concurrent transitions on the same lead.
	lead, err := scanPgLead(tx.QueryRow(ctx,
		`SELECT id, tenant_id, source, status, payload, created_at, updated_at
		 FROM leads WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		leadID, tenantID,
	))
	if err != nil {
		return nil, false, err
	}

	if lead.Status == to {
		return lead, false, nil
	}
	if err := checkTransition(lead.Status, to); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4`,
		string(to), now, leadID, tenantID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: update status %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, eris.Errorf("store: lead vanished during transition: %s", leadID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO lead_events (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), leadID, string(lead.Status), string(to), actor, now,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: insert status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, eris.Wrap(err, "postgres: commit change status")
	}

	lead.Status = to
	lead.UpdatedAt = now
	return lead, true, nil
}

func (s *PostgresStore) LeadEvents(ctx context.Context, tenantID, leadID string) ([]model.LeadEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.lead_id, e.from_status, e.to_status, e.actor, e.created_at
		 FROM lead_events e JOIN leads l ON l.id = e.lead_id
		 WHERE e.lead_id = $1 AND l.tenant_id = $2
		 ORDER BY e.created_at ASC`,
		leadID, tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lead events")
	}
	defer rows.Close()

	var events []model.LeadEvent
	for rows.Next() {
		var e model.LeadEvent
		var actor *string
		if err := rows.Scan(&e.ID, &e.LeadID, &e.FromStatus, &e.ToStatus, &actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead event")
		}
		if actor != nil {
			e.Actor = *actor
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: lead events iterate")
}

func (s *PostgresStore) TenantSettings(ctx context.Context, tenantID string) ([]model.TenantSetting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, key, value FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tenant settings")
	}
	defer rows.Close()

	var settings []model.TenantSetting
	for rows.Next() {
		var ts model.TenantSetting
		var valueJSON []byte
		if err := rows.Scan(&ts.TenantID, &ts.Key, &valueJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan setting")
		}
		if err := json.Unmarshal(valueJSON, &ts.Value); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal setting %s", ts.Key)
		}
		settings = append(settings, ts)
	}
	return settings, eris.Wrap(rows.Err(), "postgres: tenant settings iterate")
}

func (s *PostgresStore) UpdateTenantSettings(ctx context.Context, tenantID string, changes map[string]any, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin settings update")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for key, value := range changes {
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal setting %s", key)
		}

		var oldJSON []byte
		err = tx.QueryRow(ctx,
			`SELECT value FROM tenant_settings WHERE tenant_id = $1 AND key = $2`,
			tenantID, key,
		).Scan(&oldJSON)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(err, "postgres: read old setting %s", key)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO tenant_settings (tenant_id, key, value, updated_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenant_id, key) DO UPDATE SET value = $3, updated_at = $4`,
			tenantID, key, valueJSON, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert setting %s", key)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO settings_events (id, tenant_id, key, old_value, new_value, actor, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), tenantID, key, oldJSON, valueJSON, actor, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert settings event %s", key)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit settings update")
}

func (s *PostgresStore) SettingsEvents(ctx context.Context, tenantID string) ([]model.SettingsEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, key, old_value, new_value, actor, created_at
		 FROM settings_events WHERE tenant_id = $1 ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: settings events")
	}
	defer rows.Close()

	var events []model.SettingsEvent
	for rows.Next() {
		var e model.SettingsEvent
		var oldJSON, newJSON []byte
		var actor *string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Key, &oldJSON, &newJSON, &actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan settings event")
		}
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &e.OldValue); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal old value")
			}
		}
		if err := json.Unmarshal(newJSON, &e.NewValue); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal new value")
		}
		if actor != nil {
			e.Actor = *actor
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: settings events iterate")
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var payloadJSON []byte

	err := row.Scan(&l.ID, &l.TenantID, &l.Source, &l.Status, &payloadJSON, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	if err := json.Unmarshal(payloadJSON, &l.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal payload")
	}
	return &l, nil
}
