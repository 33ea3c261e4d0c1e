package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadflow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'NEW',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lead_events (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL REFERENCES leads(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tenant_settings (
	tenant_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (tenant_id, key)
);

CREATE TABLE IF NOT EXISTS settings_events (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	old_value  TEXT,
	new_value  TEXT NOT NULL,
	actor      TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_tenant_created ON leads(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_email ON leads(tenant_id, email);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_phone ON leads(tenant_id, phone);
CREATE INDEX IF NOT EXISTS idx_lead_events_lead ON lead_events(lead_id, created_at);
CREATE INDEX IF NOT EXISTS idx_settings_events_tenant ON settings_events(tenant_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, tenantID string, payload model.LeadPayload) (*model.Lead, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal payload")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create lead")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (id, tenant_id, source, status, email, phone, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, payload.Source, string(model.LeadStatusNew),
		strings.ToLower(payload.Email), payload.Phone, string(payloadJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}

	// The creation event anchors the audit trail: replaying events from an
	// empty from_status reconstructs the full lifecycle.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_events (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), id, "", string(model.LeadStatusNew), "ingest", now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert creation event")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit create lead")
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

func (s *SQLiteStore) GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, source, status, payload, created_at, updated_at
		 FROM leads WHERE id = ? AND tenant_id = ?`,
		leadID, tenantID,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, tenant_id, source, status, payload, created_at, updated_at
	          FROM leads WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) FindRecentByIdentity(ctx context.Context, tenantID, email, phone string, window time.Duration) (*model.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, nil
	}

	// Only NEW leads collapse into an earlier inquiry. Once a lead has
	// been contacted, a fresh submission from the same person is a new lead.
	query := `SELECT id, tenant_id, source, status, payload, created_at, updated_at
	          FROM leads WHERE tenant_id = ? AND status = 'NEW' AND created_at >= ?`
	args := []any{tenantID, time.Now().UTC().Add(-window)}

	switch {
	case email != "" && phone != "":
		query += ` AND (email = ? OR phone = ?)`
		args = append(args, email, phone)
	case email != "":
		query += ` AND email = ?`
		args = append(args, email)
	default:
		query += ` AND phone = ?`
		args = append(args, phone)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	l, err := scanLead(s.db.QueryRowContext(ctx, query, args...))
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) ChangeStatus(ctx context.Context, tenantID, leadID string, to model.LeadStatus, actor string) (*model.Lead, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin change status")
	}
	defer tx.Rollback()

	lead, err := scanLead(tx.QueryRowContext(ctx,
		`SELECT id, tenant_id, source, status, payload, created_at, updated_at
		 FROM leads WHERE id = ? AND tenant_id = ?`,
		leadID, tenantID,
	))
	if err != nil {
		return nil, false, err
	}

	if lead.Status == to {
		// Replays and concurrent workers land here. No event is written;
		// the trail records real transitions only.
		return lead, false, nil
	}
	if err := checkTransition(lead.Status, to); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		string(to), now, leadID, tenantID, string(lead.Status),
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: update status %s", leadID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to another writer inside the same window.
		return nil, false, eris.Errorf("store: concurrent status change on %s", leadID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_events (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), leadID, string(lead.Status), string(to), actor, now,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert status event")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit change status")
	}

	lead.Status = to
	lead.UpdatedAt = now
	return lead, true, nil
}

func (s *SQLiteStore) LeadEvents(ctx context.Context, tenantID, leadID string) ([]model.LeadEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.lead_id, e.from_status, e.to_status, e.actor, e.created_at
		 FROM lead_events e JOIN leads l ON l.id = e.lead_id
		 WHERE e.lead_id = ? AND l.tenant_id = ?
		 ORDER BY e.created_at ASC`,
		leadID, tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lead events")
	}
	defer rows.Close()

	var events []model.LeadEvent
	for rows.Next() {
		var e model.LeadEvent
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &e.LeadID, &e.FromStatus, &e.ToStatus, &actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead event")
		}
		e.Actor = actor.String
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: lead events iterate")
}

func (s *SQLiteStore) TenantSettings(ctx context.Context, tenantID string) ([]model.TenantSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, key, value FROM tenant_settings WHERE tenant_id = ?`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tenant settings")
	}
	defer rows.Close()

	var settings []model.TenantSetting
	for rows.Next() {
		var ts model.TenantSetting
		var valueJSON string
		if err := rows.Scan(&ts.TenantID, &ts.Key, &valueJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan setting")
		}
		if err := json.Unmarshal([]byte(valueJSON), &ts.Value); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal setting %s", ts.Key)
		}
		settings = append(settings, ts)
	}
	return settings, eris.Wrap(rows.Err(), "sqlite: tenant settings iterate")
}

func (s *SQLiteStore) UpdateTenantSettings(ctx context.Context, tenantID string, changes map[string]any, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin settings update")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for key, value := range changes {
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal setting %s", key)
		}

		var oldJSON sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT value FROM tenant_settings WHERE tenant_id = ? AND key = ?`,
			tenantID, key,
		).Scan(&oldJSON)
		if err != nil && err != sql.ErrNoRows {
			return eris.Wrapf(err, "sqlite: read old setting %s", key)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO tenant_settings (tenant_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (tenant_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			tenantID, key, string(valueJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert setting %s", key)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO settings_events (id, tenant_id, key, old_value, new_value, actor, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), tenantID, key, nullableString(oldJSON), string(valueJSON), actor, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert settings event %s", key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit settings update")
}

func (s *SQLiteStore) SettingsEvents(ctx context.Context, tenantID string) ([]model.SettingsEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, key, old_value, new_value, actor, created_at
		 FROM settings_events WHERE tenant_id = ? ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: settings events")
	}
	defer rows.Close()

	var events []model.SettingsEvent
	for rows.Next() {
		var e model.SettingsEvent
		var oldJSON sql.NullString
		var newJSON string
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Key, &oldJSON, &newJSON, &actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan settings event")
		}
		if oldJSON.Valid {
			if err := json.Unmarshal([]byte(oldJSON.String), &e.OldValue); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal old value")
			}
		}
		if err := json.Unmarshal([]byte(newJSON), &e.NewValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal new value")
		}
		e.Actor = actor.String
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: settings events iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var payloadJSON string

	err := row.Scan(&l.ID, &l.TenantID, &l.Source, &l.Status, &payloadJSON, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	if err := json.Unmarshal([]byte(payloadJSON), &l.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal payload")
	}
	return &l, nil
}

func nullableString(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
