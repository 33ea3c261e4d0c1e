package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, metrics.NopSink{}, nil), st
}

func payload(email, phone string) model.LeadPayload {
	return model.LeadPayload{
		Brand:   "rendetalje",
		Source:  "leadmail",
		Name:    "Rene Fly Jensen",
		Email:   email,
		Phone:   phone,
		Country: "DK",
	}
}

func TestFindOrCreate_CreatesThenCollapses(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", "12345678"), time.Hour)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", "12345678"), time.Hour)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
}

func TestFindOrCreate_EmailMatchIsCaseInsensitive(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", ""), time.Hour)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := eng.FindOrCreate(ctx, "t1", payload("RENE@GMAIL.COM", ""), time.Hour)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
}

func TestFindOrCreate_PhoneOnlyMatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.FindOrCreate(ctx, "t1", payload("", "12345678"), time.Hour)
	require.NoError(t, err)
	require.True(t, first.Created)

	// Different email, same phone still collapses.
	second, err := eng.FindOrCreate(ctx, "t1", payload("other@gmail.com", "12345678"), time.Hour)
	require.NoError(t, err)
	assert.False(t, second.Created)
}

func TestFindOrCreate_ContactedLeadDoesNotAbsorb(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", "12345678"), time.Hour)
	require.NoError(t, err)
	require.True(t, first.Created)

	_, _, err = st.ChangeStatus(ctx, "t1", first.Lead.ID, model.LeadStatusContacted, "mette")
	require.NoError(t, err)

	// A follow-up inquiry after contact is a fresh lead, not a duplicate.
	second, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", "12345678"), time.Hour)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Lead.ID, second.Lead.ID)
}

func TestFindOrCreate_TenantsDoNotCollide(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", ""), time.Hour)
	require.NoError(t, err)
	second, err := eng.FindOrCreate(ctx, "t2", payload("rene@gmail.com", ""), time.Hour)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Lead.ID, second.Lead.ID)
}

func TestFindOrCreate_IdentityLessAlwaysCreates(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	stub := model.LeadPayload{Source: "leadpoint", Partial: true}
	first, err := eng.FindOrCreate(ctx, "t1", stub, time.Hour)
	require.NoError(t, err)
	second, err := eng.FindOrCreate(ctx, "t1", stub, time.Hour)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Lead.ID, second.Lead.ID)
}

func TestFindOrCreate_ConcurrentSameIdentityCreatesOne(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*Result, workers)
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = eng.FindOrCreate(ctx, "t1", payload("rene@gmail.com", "12345678"), time.Hour)
		}()
	}
	wg.Wait()

	created := 0
	ids := make(map[string]struct{})
	for i := range workers {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
		ids[results[i].Lead.ID] = struct{}{}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}
