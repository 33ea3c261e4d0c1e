package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func leadRow(id, tenantID string, status model.LeadStatus, payload model.LeadPayload, createdAt time.Time) *pgxmock.Rows {
	payloadJSON, _ := json.Marshal(payload)
	return pgxmock.NewRows([]string{"id", "tenant_id", "source", "status", "payload", "created_at", "updated_at"}).
		AddRow(id, tenantID, payload.Source, string(status), payloadJSON, createdAt, createdAt)
}

func TestPostgres_CreateLead_InsertsLeadAndCreationEvent(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "t1", "leadmail", "NEW", "rene@gmail.com", "12345678",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO lead_events`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "", "NEW", "ingest", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	lead, err := st.CreateLead(context.Background(), "t1", model.LeadPayload{
		Source: "leadmail",
		Email:  "Rene@gmail.com",
		Phone:  "12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.NotEmpty(t, lead.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateLead_RollsBackOnEventFailure(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "t1", "webform", "NEW", "mia@gmail.com", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO lead_events`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "", "NEW", "ingest", pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := st.CreateLead(context.Background(), "t1", model.LeadPayload{
		Source: "webform",
		Email:  "mia@gmail.com",
	})
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetLead_NotFound(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("missing", "t1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "source", "status", "payload", "created_at", "updated_at"}))

	_, err := st.GetLead(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindRecentByIdentity_MissReturnsNil(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE tenant_id = \$1 AND status = 'NEW' AND created_at >= \$2 AND email = \$3`).
		WithArgs("t1", pgxmock.AnyArg(), "rene@gmail.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "source", "status", "payload", "created_at", "updated_at"}))

	lead, err := st.FindRecentByIdentity(context.Background(), "t1", "RENE@gmail.com", "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindRecentByIdentity_EmailOrPhone(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	payload := model.LeadPayload{Source: "leadmail", Email: "rene@gmail.com", Phone: "12345678"}
	mock.ExpectQuery(`status = 'NEW' AND .+ AND \(email = \$3 OR phone = \$4\)`).
		WithArgs("t1", pgxmock.AnyArg(), "rene@gmail.com", "12345678").
		WillReturnRows(leadRow("lead-1", "t1", model.LeadStatusNew, payload, time.Now().UTC()))

	lead, err := st.FindRecentByIdentity(context.Background(), "t1", "rene@gmail.com", "12345678", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "lead-1", lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindRecentByIdentity_NoIdentitySkipsQuery(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	lead, err := st.FindRecentByIdentity(context.Background(), "t1", "", "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ChangeStatus_TransitionCommits(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	payload := model.LeadPayload{Source: "leadmail", Email: "rene@gmail.com"}
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("lead-1", "t1").
		WillReturnRows(leadRow("lead-1", "t1", model.LeadStatusNew, payload, time.Now().UTC()))
	mock.ExpectExec(`UPDATE leads SET status`).
		WithArgs("CONTACTED", pgxmock.AnyArg(), "lead-1", "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO lead_events`).
		WithArgs(pgxmock.AnyArg(), "lead-1", "NEW", "CONTACTED", "mette", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	lead, changed, err := st.ChangeStatus(context.Background(), "t1", "lead-1", model.LeadStatusContacted, "mette")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.LeadStatusContacted, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ChangeStatus_SameStatusIsNoOp(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	payload := model.LeadPayload{Source: "leadmail", Email: "rene@gmail.com"}
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("lead-1", "t1").
		WillReturnRows(leadRow("lead-1", "t1", model.LeadStatusContacted, payload, time.Now().UTC()))
	mock.ExpectRollback()

	lead, changed, err := st.ChangeStatus(context.Background(), "t1", "lead-1", model.LeadStatusContacted, "mette")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.LeadStatusContacted, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ChangeStatus_InvalidTransitionRollsBack(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	payload := model.LeadPayload{Source: "leadmail", Email: "rene@gmail.com"}
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("lead-1", "t1").
		WillReturnRows(leadRow("lead-1", "t1", model.LeadStatusContacted, payload, time.Now().UTC()))
	mock.ExpectRollback()

	_, _, err := st.ChangeStatus(context.Background(), "t1", "lead-1", model.LeadStatusNew, "mette")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateTenantSettings_UpsertAndAudit(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM tenant_settings`).
		WithArgs("t1", "sla_response_minutes").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	mock.ExpectExec(`ON CONFLICT \(tenant_id, key\)`).
		WithArgs("t1", "sla_response_minutes", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO settings_events`).
		WithArgs(pgxmock.AnyArg(), "t1", "sla_response_minutes", pgxmock.AnyArg(),
			pgxmock.AnyArg(), "mette", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.UpdateTenantSettings(context.Background(), "t1",
		map[string]any{"sla_response_minutes": 90}, "mette")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
