// engine/engine_test.go
package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/cache"
	"github.com/clinicore/authcore/engine"
	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/metrics"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/registry"
	"github.com/clinicore/authcore/test/mock"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	m.Run()
}

func newTestEngine(t *testing.T, identityID string, checker *mock.MockAuthority) (*engine.Engine, *metrics.Recorder) {
	t.Helper()
	recorder := metrics.NewRecorder()
	permCache := cache.New(context.Background(), model.CacheConfig{
		TTL:        time.Minute,
		MaxEntries: 50,
		Retention:  model.RetentionMemory,
	}, nil, recorder.RecordError)
	return engine.NewEngine(identityID, checker, permCache, recorder, registry.New(nil, nil, nil), nil), recorder
}

func TestCheckGrantsFromAuthority(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").Return(true, nil)
	eng, recorder := newTestEngine(t, "dr-house", checker)

	granted, err := eng.Check(context.Background(), "records.view").Await(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	snapshot := recorder.Snapshot()
	assert.Equal(t, int64(1), snapshot.CacheMisses)
	assert.Zero(t, snapshot.Denials)
	checker.AssertExpectations(t)
}

func TestCheckFailClosedOnAuthorityError(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Return(false, errors.New("connection refused"))
	eng, recorder := newTestEngine(t, "dr-house", checker)

	granted, err := eng.Check(context.Background(), "records.view").Await(context.Background())
	assert.False(t, granted)
	assert.Error(t, err)

	snapshot := recorder.Snapshot()
	assert.Equal(t, int64(1), snapshot.Denials)
	assert.Equal(t, int64(1), snapshot.Errors)
}

func TestCheckDoesNotCacheErrors(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Return(false, errors.New("boom")).Once()
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Return(true, nil).Once()
	eng, _ := newTestEngine(t, "dr-house", checker)
	ctx := context.Background()

	granted, err := eng.Check(ctx, "records.view").Await(ctx)
	assert.False(t, granted)
	assert.Error(t, err)

	// A failed check must not poison the cache; the next check re-asks.
	granted, err = eng.Check(ctx, "records.view").Await(ctx)
	require.NoError(t, err)
	assert.True(t, granted)
	checker.AssertExpectations(t)
}

func TestCheckServesSecondCallFromCache(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Return(true, nil).Once()
	eng, recorder := newTestEngine(t, "dr-house", checker)
	ctx := context.Background()

	_, err := eng.Check(ctx, "records.view").Await(ctx)
	require.NoError(t, err)

	granted, err := eng.Check(ctx, "records.view").Await(ctx)
	require.NoError(t, err)
	assert.True(t, granted)

	snapshot := recorder.Snapshot()
	assert.Equal(t, int64(1), snapshot.CacheHits)
	assert.Equal(t, int64(1), snapshot.CacheMisses)
	checker.AssertExpectations(t)
}

func TestCachedDenialStaysDenied(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.delete").
		Return(false, nil).Once()
	eng, _ := newTestEngine(t, "dr-house", checker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		granted, err := eng.Check(ctx, "records.delete").Await(ctx)
		require.NoError(t, err)
		assert.False(t, granted)
	}
	checker.AssertExpectations(t)
}

func TestUnauthenticatedDeniesWithoutAuthority(t *testing.T) {
	checker := new(mock.MockAuthority)
	eng, _ := newTestEngine(t, "", checker)

	granted, err := eng.Check(context.Background(), "records.view").Await(context.Background())
	assert.False(t, granted)
	assert.ErrorIs(t, err, authcore_errors.ErrNotAuthenticated)
	checker.AssertNotCalled(t, "CheckPermission", tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestCheckBatchEvaluatesEveryCode(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").Return(true, nil)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.edit").Return(false, nil)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.delete").
		Return(false, errors.New("timeout"))
	eng, _ := newTestEngine(t, "dr-house", checker)

	results := eng.CheckBatch(context.Background(), []string{
		"records.view", "records.edit", "records.delete",
	})

	assert.Equal(t, map[string]bool{
		"records.view":   true,
		"records.edit":   false,
		"records.delete": false,
	}, results)
	checker.AssertExpectations(t)
}

func TestSubscribeObservesResolution(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").Return(true, nil)
	eng, _ := newTestEngine(t, "dr-house", checker)

	future := eng.Check(context.Background(), "records.view")
	resolved := make(chan model.CheckResult, 1)
	future.Subscribe(func(result model.CheckResult) {
		resolved <- result
	})

	select {
	case result := <-resolved:
		assert.True(t, result.Granted)
		assert.False(t, result.Loading)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never fired")
	}
}

func TestResultReportsLoadingUntilResolved(t *testing.T) {
	release := make(chan struct{})
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Run(func(tmock.Arguments) { <-release }).
		Return(true, nil)
	eng, _ := newTestEngine(t, "dr-house", checker)

	future := eng.Check(context.Background(), "records.view")
	assert.True(t, future.Result().Loading)

	close(release)
	granted, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.False(t, future.Result().Loading)
}

func TestAbandonedCheckStillPopulatesCache(t *testing.T) {
	release := make(chan struct{})
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").
		Run(func(tmock.Arguments) { <-release }).
		Return(true, nil).Once()
	eng, _ := newTestEngine(t, "dr-house", checker)

	ctx, cancel := context.WithCancel(context.Background())
	future := eng.Check(ctx, "records.view")
	cancel()

	granted, err := future.Await(ctx)
	assert.False(t, granted, "an abandoned caller never sees a grant")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	// The in-flight answer should land in the cache for the next caller.
	assert.Eventually(t, func() bool {
		granted, ok := eng.Cache().Get("records.view")
		return ok && granted
	}, 2*time.Second, 10*time.Millisecond)
	checker.AssertExpectations(t)
}

func TestManagerReusesEngineForIdentity(t *testing.T) {
	checker := new(mock.MockAuthority)
	manager := engine.NewManager(checker, registry.New(nil, nil, nil), nil, model.CacheConfig{
		TTL:        time.Minute,
		MaxEntries: 10,
		Retention:  model.RetentionMemory,
	}, nil)
	ctx := context.Background()

	first := manager.ForIdentity(ctx, "dr-house")
	second := manager.ForIdentity(ctx, "dr-house")
	other := manager.ForIdentity(ctx, "dr-wilson")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestManagerTransientEngineHasUsableCache(t *testing.T) {
	checker := new(mock.MockAuthority)
	manager := engine.NewManager(checker, registry.New(nil, nil, nil), nil, model.CacheConfig{
		TTL:        time.Minute,
		MaxEntries: 10,
		Retention:  model.RetentionBoth,
	}, nil)
	ctx := context.Background()

	eng := manager.ForIdentity(ctx, "")

	// The deny-everything engine must still serve the cache surface: stats
	// and invalidation are reachable without an identity.
	stats := eng.Cache().Stats()
	assert.Equal(t, 0, stats.Size)
	eng.Cache().InvalidateMany(ctx, []string{"records.view"})

	granted, err := eng.Check(ctx, "records.view").Await(ctx)
	assert.False(t, granted)
	assert.ErrorIs(t, err, authcore_errors.ErrNotAuthenticated)
}

func TestManagerInvalidateDiscardsState(t *testing.T) {
	checker := new(mock.MockAuthority)
	checker.On("CheckPermission", tmock.Anything, "dr-house", "records.view").Return(true, nil)
	manager := engine.NewManager(checker, registry.New(nil, nil, nil), nil, model.CacheConfig{
		TTL:        time.Minute,
		MaxEntries: 10,
		Retention:  model.RetentionMemory,
	}, nil)
	ctx := context.Background()

	eng := manager.ForIdentity(ctx, "dr-house")
	_, err := eng.Check(ctx, "records.view").Await(ctx)
	require.NoError(t, err)

	manager.InvalidateIdentity(ctx, "dr-house")

	rebuilt := manager.ForIdentity(ctx, "dr-house")
	assert.NotSame(t, eng, rebuilt)
	_, ok := rebuilt.Cache().Get("records.view")
	assert.False(t, ok, "a rebuilt session must start with an empty cache")
}
