package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksim/backend/database"
	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// setupStore connects to the test database or skips the suite when it is
// unreachable.
func setupStore(t *testing.T) *database.Store {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://localhost/stocksim_test?sslmode=disable"
	}

	store, err := database.Connect(dbURL)
	if err != nil {
		t.Skipf("Skipping integration tests - database not available: %v", err)
		return nil
	}

	if err := store.Migrate("../database/schema.sql"); err != nil {
		store.Close()
		t.Skipf("Skipping integration tests - migration failed: %v", err)
		return nil
	}

	t.Cleanup(store.Close)
	return store
}

func uniqueSymbol() string {
	return "T" + strings.ToUpper(uuid.NewString()[:7])
}

func errCode(t *testing.T, err error) shared.ErrorCode {
	t.Helper()
	var apiErr *shared.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.Code
}

func createOpenIPO(t *testing.T, svc *IPOService, totalShares int64) *models.IPO {
	t.Helper()
	ctx := context.Background()

	ipo, err := svc.CreateIPO(ctx, &IPOInput{
		Symbol:      uniqueSymbol(),
		CompanyName: "Test Offering Ltd",
		TotalShares: totalShares,
		IssuePrice:  100,
	})
	require.NoError(t, err)
	require.Equal(t, models.IPOStatusUpcoming, ipo.Status)

	ipo, err = svc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusOpen)
	require.NoError(t, err)
	return ipo
}

func TestIPOApplicationLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)
	portfolioSvc := NewPortfolioService(store.DB)

	ipo := createOpenIPO(t, ipoSvc, 150)
	user := uuid.New()

	updated, err := ipoSvc.Apply(ctx, ipo.Symbol, user, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), updated.SharesAvailable)
	require.Len(t, updated.Applications, 1)
	assert.Equal(t, models.ApplicationStatusPending, updated.Applications[0].Status)
	assert.Equal(t, int64(0), updated.Applications[0].SharesAllotted)
	assert.Equal(t, int64(100), updated.Applications[0].SharesApplied)

	// The portfolio mirror entry landed in the same transaction.
	portfolio, err := portfolioSvc.GetOrCreate(ctx, user)
	require.NoError(t, err)
	require.Len(t, portfolio.AppliedIPOs, 1)
	assert.Equal(t, ipo.Symbol, portfolio.AppliedIPOs[0].Symbol)
	assert.Equal(t, int64(100), portfolio.AppliedIPOs[0].SharesApplied)

	// Repeat by the same caller fails and mutates nothing.
	_, err = ipoSvc.Apply(ctx, ipo.Symbol, user, 10)
	assert.Equal(t, shared.CodeDuplicate, errCode(t, err))

	reloaded, err := ipoSvc.GetIPOBySymbol(ctx, ipo.Symbol)
	require.NoError(t, err)
	assert.Equal(t, int64(50), reloaded.SharesAvailable)
	assert.Len(t, reloaded.Applications, 1)

	portfolio, err = portfolioSvc.Get(ctx, user)
	require.NoError(t, err)
	assert.Len(t, portfolio.AppliedIPOs, 1)

	// Oversubscription by another caller clamps at zero.
	other := uuid.New()
	updated, err = ipoSvc.Apply(ctx, ipo.Symbol, other, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.SharesAvailable)
}

func TestApplyValidationAndState(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)
	user := uuid.New()

	// Unknown symbol.
	_, err := ipoSvc.Apply(ctx, uniqueSymbol(), user, 10)
	assert.Equal(t, shared.CodeNotFound, errCode(t, err))

	// Not yet open.
	ipo, err := ipoSvc.CreateIPO(ctx, &IPOInput{
		Symbol:      uniqueSymbol(),
		CompanyName: "Upcoming Ltd",
		TotalShares: 100,
		IssuePrice:  50,
	})
	require.NoError(t, err)

	_, err = ipoSvc.Apply(ctx, ipo.Symbol, user, 10)
	assert.Equal(t, shared.CodeInvalidState, errCode(t, err))

	// Invalid share counts are rejected before any lookup.
	_, err = ipoSvc.Apply(ctx, ipo.Symbol, user, 0)
	assert.Equal(t, shared.CodeValidation, errCode(t, err))
	_, err = ipoSvc.Apply(ctx, ipo.Symbol, user, -5)
	assert.Equal(t, shared.CodeValidation, errCode(t, err))

	reloaded, err := ipoSvc.GetIPOBySymbol(ctx, ipo.Symbol)
	require.NoError(t, err)
	assert.Equal(t, int64(100), reloaded.SharesAvailable)
	assert.Empty(t, reloaded.Applications)
}

// Apply commits the application insert, the shares_available decrement,
// and the portfolio mirror entry together. Failing the last write through
// a trigger must roll back the first two.
func TestApplyRollsBackOnPortfolioWriteFailure(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)

	_, err := store.DB.ExecContext(ctx, `
		CREATE OR REPLACE FUNCTION reject_poison_entries() RETURNS trigger AS $fn$
		BEGIN
			IF NEW.symbol LIKE 'POISN%' THEN
				RAISE EXCEPTION 'portfolio entry rejected';
			END IF;
			RETURN NEW;
		END;
		$fn$ LANGUAGE plpgsql`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `
		DROP TRIGGER IF EXISTS reject_poison_entries ON portfolio_ipo_entries`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `
		CREATE TRIGGER reject_poison_entries BEFORE INSERT ON portfolio_ipo_entries
		FOR EACH ROW EXECUTE FUNCTION reject_poison_entries()`)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.DB.Exec(`DROP TRIGGER IF EXISTS reject_poison_entries ON portfolio_ipo_entries`)
		store.DB.Exec(`DROP FUNCTION IF EXISTS reject_poison_entries()`)
	})

	symbol := "POISN" + strings.ToUpper(uuid.NewString()[:4])
	_, err = ipoSvc.CreateIPO(ctx, &IPOInput{
		Symbol:      symbol,
		CompanyName: "Rollback Test Ltd",
		TotalShares: 500,
		IssuePrice:  20,
	})
	require.NoError(t, err)
	_, err = ipoSvc.UpdateStatus(ctx, symbol, models.IPOStatusOpen)
	require.NoError(t, err)

	user := uuid.New()
	_, err = ipoSvc.Apply(ctx, symbol, user, 100)
	require.Error(t, err)

	// The application insert and the decrement rolled back with the
	// failed entry write.
	reloaded, err := ipoSvc.GetIPOBySymbol(ctx, symbol)
	require.NoError(t, err)
	assert.Equal(t, int64(500), reloaded.SharesAvailable)
	assert.Empty(t, reloaded.Applications)

	// The lazily created portfolio row was part of the same transaction.
	var portfolios int
	err = store.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM portfolios WHERE user_id = $1`, user).Scan(&portfolios)
	require.NoError(t, err)
	assert.Zero(t, portfolios)

	// A retry after the fault clears succeeds from a clean slate.
	_, err = store.DB.ExecContext(ctx, `
		DROP TRIGGER IF EXISTS reject_poison_entries ON portfolio_ipo_entries`)
	require.NoError(t, err)

	updated, err := ipoSvc.Apply(ctx, symbol, user, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(400), updated.SharesAvailable)
	assert.Len(t, updated.Applications, 1)
}

func TestIPOStatusMonotonic(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)

	ipo, err := ipoSvc.CreateIPO(ctx, &IPOInput{
		Symbol:      uniqueSymbol(),
		CompanyName: "Lifecycle Ltd",
		TotalShares: 10,
		IssuePrice:  10,
	})
	require.NoError(t, err)

	// Skipping states or going backwards is rejected.
	_, err = ipoSvc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusClosed)
	assert.Equal(t, shared.CodeInvalidState, errCode(t, err))

	_, err = ipoSvc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusOpen)
	require.NoError(t, err)
	_, err = ipoSvc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusUpcoming)
	assert.Equal(t, shared.CodeInvalidState, errCode(t, err))

	_, err = ipoSvc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusClosed)
	require.NoError(t, err)
	updated, err := ipoSvc.UpdateStatus(ctx, ipo.Symbol, models.IPOStatusAllotted)
	require.NoError(t, err)
	assert.Equal(t, models.IPOStatusAllotted, updated.Status)
}

func TestAllotmentStateMachine(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)
	portfolioSvc := NewPortfolioService(store.DB)

	ipo := createOpenIPO(t, ipoSvc, 1000)
	user := uuid.New()

	updated, err := ipoSvc.Apply(ctx, ipo.Symbol, user, 200)
	require.NoError(t, err)
	appID := updated.Applications[0].ID

	// Outcome must be terminal.
	_, err = ipoSvc.UpdateAllotment(ctx, ipo.Symbol, appID, &AllotmentInput{
		Status: models.ApplicationStatusPending,
	})
	assert.Equal(t, shared.CodeValidation, errCode(t, err))

	app, err := ipoSvc.UpdateAllotment(ctx, ipo.Symbol, appID, &AllotmentInput{
		Status:         models.ApplicationStatusAllotted,
		SharesAllotted: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAllotted, app.Status)
	assert.Equal(t, int64(150), app.SharesAllotted)

	// The outcome is terminal once set.
	_, err = ipoSvc.UpdateAllotment(ctx, ipo.Symbol, appID, &AllotmentInput{
		Status: models.ApplicationStatusNotAllotted,
	})
	assert.Equal(t, shared.CodeInvalidState, errCode(t, err))

	// The allotment path does not mirror into the applicant's portfolio
	// lists; only the application entry from Apply is present.
	portfolio, err := portfolioSvc.Get(ctx, user)
	require.NoError(t, err)
	assert.Len(t, portfolio.AppliedIPOs, 1)
	assert.Empty(t, portfolio.AllottedIPOs)
	assert.Empty(t, portfolio.NotAllottedIPOs)
}

func TestSharesAvailableClampProperty(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ipoSvc := NewIPOService(store.DB)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 15
	properties := gopter.NewProperties(params)

	properties.Property("shares_available equals max(0, total - sum(applied))", prop.ForAll(
		func(totalShares int64, requests []int64) bool {
			ipo := createOpenIPO(t, ipoSvc, totalShares)

			var sum int64
			for _, shares := range requests {
				updated, err := ipoSvc.Apply(ctx, ipo.Symbol, uuid.New(), shares)
				if err != nil {
					return false
				}
				sum += shares

				expected := totalShares - sum
				if expected < 0 {
					expected = 0
				}
				if updated.SharesAvailable != expected {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 5000),
		gen.SliceOfN(4, gen.Int64Range(1, 2000)),
	))

	properties.TestingRun(t)
}

func TestPortfolioLazyCreateSummaryAsymmetry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	portfolioSvc := NewPortfolioService(store.DB)
	user := uuid.New()

	// The summary path does not lazy-create.
	_, err := portfolioSvc.Summary(ctx, user)
	assert.Equal(t, shared.CodeNotFound, errCode(t, err))

	// The read path does, returning empty lists rather than an error.
	portfolio, err := portfolioSvc.GetOrCreate(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, portfolio.AppliedIPOs)
	assert.Empty(t, portfolio.AllottedIPOs)
	assert.Empty(t, portfolio.NotAllottedIPOs)
	assert.Empty(t, portfolio.OwnedStocks)
	assert.Zero(t, portfolio.TotalInvestment)

	// Repeat reads reuse the same portfolio.
	again, err := portfolioSvc.GetOrCreate(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, portfolio.ID, again.ID)

	// With the portfolio in place the summary works; zero investment
	// yields a zero percentage.
	summary, err := portfolioSvc.Summary(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, summary.CurrentValue)
	assert.Zero(t, summary.ProfitLossPercent)
}

func TestSimulatedBuyAndValuation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	stockSvc := NewStockService(store.DB)
	portfolioSvc := NewPortfolioService(store.DB)
	user := uuid.New()

	symbol := uniqueSymbol()
	_, err := stockSvc.CreateStock(ctx, &StockInput{
		Symbol:        symbol,
		Name:          "Valuation Test Corp",
		Price:         50,
		PreviousClose: 48,
	})
	require.NoError(t, err)

	txn, err := portfolioSvc.Buy(ctx, user, symbol, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), txn.Quantity)
	assert.InDelta(t, 50.0, txn.Price, 1e-9)
	assert.InDelta(t, 500.0, txn.Total, 1e-9)

	portfolio, err := portfolioSvc.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, portfolio.OwnedStocks, 1)
	assert.Equal(t, int64(10), portfolio.OwnedStocks[0].Quantity)
	assert.InDelta(t, 50.0, portfolio.OwnedStocks[0].AveragePrice, 1e-9)
	assert.InDelta(t, 500.0, portfolio.TotalInvestment, 1e-9)

	// Price moves up; the summary reflects it without persisting
	// current_value.
	_, err = stockSvc.UpdateStock(ctx, symbol, &StockInput{
		Symbol:        symbol,
		Name:          "Valuation Test Corp",
		Price:         60,
		PreviousClose: 50,
	}, false)
	require.NoError(t, err)

	summary, err := portfolioSvc.Summary(ctx, user)
	require.NoError(t, err)
	assert.InDelta(t, 600.0, summary.CurrentValue, 1e-9)
	assert.InDelta(t, 100.0, summary.ProfitLoss, 1e-9)
	assert.InDelta(t, 20.00, summary.ProfitLossPercent, 1e-9)
	assert.Zero(t, summary.Portfolio.CurrentValue) // stored column is never written

	// A second buy at the new price produces a weighted average cost.
	_, err = portfolioSvc.Buy(ctx, user, symbol, 10)
	require.NoError(t, err)

	portfolio, err = portfolioSvc.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, portfolio.OwnedStocks, 1)
	assert.Equal(t, int64(20), portfolio.OwnedStocks[0].Quantity)
	assert.InDelta(t, 55.0, portfolio.OwnedStocks[0].AveragePrice, 1e-9)
	assert.InDelta(t, 1100.0, portfolio.TotalInvestment, 1e-9)

	// Buying an unknown symbol fails without side effects.
	_, err = portfolioSvc.Buy(ctx, user, uniqueSymbol(), 5)
	assert.Equal(t, shared.CodeNotFound, errCode(t, err))
	_, err = portfolioSvc.Buy(ctx, user, symbol, 0)
	assert.Equal(t, shared.CodeValidation, errCode(t, err))

	txns, err := portfolioSvc.ListTransactions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestWatchlistMembership(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	watchlistSvc := NewWatchlistService(store.DB)
	user := uuid.New()
	symbol := uniqueSymbol()

	item, err := watchlistSvc.Add(ctx, user, symbol)
	require.NoError(t, err)
	assert.Equal(t, symbol, item.Symbol)

	_, err = watchlistSvc.Add(ctx, user, symbol)
	assert.Equal(t, shared.CodeDuplicate, errCode(t, err))

	items, err := watchlistSvc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, watchlistSvc.Remove(ctx, user, symbol))
	err = watchlistSvc.Remove(ctx, user, symbol)
	assert.Equal(t, shared.CodeNotFound, errCode(t, err))
}

func TestRegisterAndLogin(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	authSvc := NewAuthService(store.DB, "integration-test-secret", time.Hour)

	email := fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8])

	user, err := authSvc.Register(ctx, email, "correct horse battery", "Test User")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	_, err = authSvc.Register(ctx, email, "another password", "Imposter")
	assert.Equal(t, shared.CodeDuplicate, errCode(t, err))

	_, err = authSvc.Register(ctx, "not-an-email", "valid password", "X")
	assert.Equal(t, shared.CodeValidation, errCode(t, err))
	_, err = authSvc.Register(ctx, "short@example.com", "short", "X")
	assert.Equal(t, shared.CodeValidation, errCode(t, err))

	token, logged, err := authSvc.Login(ctx, email, "correct horse battery")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	_, _, err = authSvc.Login(ctx, email, "wrong password")
	assert.Equal(t, shared.CodeUnauthenticated, errCode(t, err))
}

func TestLoginRateLimiting(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	authSvc := NewAuthService(store.DB, "integration-test-secret", time.Hour)

	email := fmt.Sprintf("limited-%s@example.com", uuid.NewString()[:8])
	_, err := authSvc.Register(ctx, email, "the real password", "Limited User")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err = authSvc.Login(ctx, email, "wrong password")
		assert.Equal(t, shared.CodeUnauthenticated, errCode(t, err))
	}

	// Even the correct password is blocked once the limit is hit.
	_, _, err = authSvc.Login(ctx, email, "the real password")
	assert.Equal(t, shared.CodeForbidden, errCode(t, err))
}
