package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/config"
	"github.com/macross-trading/macross/internal/models"
	"github.com/macross-trading/macross/internal/risk"
	"github.com/macross-trading/macross/internal/store"
)

// fakeBrokerage is a scriptable Brokerage for engine tests
type fakeBrokerage struct {
	mu        sync.Mutex
	prices    []decimal.Decimal
	pricesErr error
	position   decimal.Decimal
	tradable   bool
	orders     []*models.OrderRequest
	orderErr   error
	accountErr error
}

func (f *fakeBrokerage) GetClosingPrices(ctx context.Context, symbol, timeframe string, limit int) ([]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	return f.prices, nil
}

func (f *fakeBrokerage) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Position{
		Symbol:      symbol,
		Qty:         f.position,
		MarketValue: f.position.Mul(decimal.NewFromInt(100)),
	}, nil
}

func (f *fakeBrokerage) PlaceOrder(ctx context.Context, order *models.OrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, order)
	return &models.Order{ID: "order-1", Symbol: order.Symbol, Qty: order.Qty, Side: order.Side, Status: "accepted"}, nil
}

func (f *fakeBrokerage) IsTradable(ctx context.Context, symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tradable
}

func (f *fakeBrokerage) GetAccount(ctx context.Context) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return &models.Account{
		Cash:        decimal.NewFromInt(100000),
		BuyingPower: decimal.NewFromInt(100000),
	}, nil
}

func (f *fakeBrokerage) placedOrders() []*models.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.OrderRequest(nil), f.orders...)
}

func (f *fakeBrokerage) setPricesErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pricesErr = err
}

func (f *fakeBrokerage) setAccountErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountErr = err
}

func newTestManager(t *testing.T, broker *fakeBrokerage) (*Manager, store.Repository) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	repo := store.New(db)

	cfg := &config.Config{
		TickInterval: 10 * time.Millisecond,
		TickTimeout:  time.Second,
		BarTimeframe: "1Hour",
	}

	m := NewManager(repo, broker, risk.NewManager(), zap.NewNop(), cfg)
	t.Cleanup(func() {
		if m.IsRunning() {
			_ = m.Stop(context.Background())
		}
	})
	return m, repo
}

func validParams() StartParams {
	return StartParams{
		Symbol:      "AAPL",
		ShortWindow: 2,
		LongWindow:  4,
		TradeAmount: decimal.RequireFromString("10000"),
		Strategy:    "moving_average",
	}
}

func bullishPrices() []decimal.Decimal {
	// shortMA=30 > longMA=20, last close 26.94
	return []decimal.Decimal{
		decimal.RequireFromString("10"),
		decimal.RequireFromString("10"),
		decimal.RequireFromString("33.06"),
		decimal.RequireFromString("26.94"),
	}
}

func TestStartValidation(t *testing.T) {
	m, repo := newTestManager(t, &fakeBrokerage{tradable: true})
	ctx := context.Background()

	p := validParams()
	p.Symbol = ""
	_, err := m.Start(ctx, p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	p = validParams()
	p.TradeAmount = decimal.Zero
	_, err = m.Start(ctx, p)
	require.ErrorAs(t, err, &verr)

	// Nothing was persisted
	row, err := repo.GetRunning(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.False(t, m.IsRunning())
}

func TestStartUntradableSymbol(t *testing.T) {
	m, repo := newTestManager(t, &fakeBrokerage{tradable: false})
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	var serr *InvalidSymbolError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "AAPL", serr.Symbol)

	row, err := repo.GetRunning(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.False(t, m.IsRunning())
}

func TestStartTwiceRejected(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	m, repo := newTestManager(t, broker)
	ctx := context.Background()

	msg, err := m.Start(ctx, validParams())
	require.NoError(t, err)
	assert.Contains(t, msg, "AAPL")

	_, err = m.Start(ctx, validParams())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// Still exactly one running row
	row, err := repo.GetRunning(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "AAPL", row.Symbol)
}

func TestStopNotRunning(t *testing.T) {
	m, _ := newTestManager(t, &fakeBrokerage{tradable: true})

	err := m.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestStartStopLifecycle(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	m, repo := newTestManager(t, broker)
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	require.NoError(t, err)
	require.True(t, m.IsRunning())

	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning())

	row, err := repo.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, store.StatusStopped, row.Status)
}

func TestStatusNotRunning(t *testing.T) {
	m, _ := newTestManager(t, &fakeBrokerage{tradable: true})

	snapshot, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestStatusRunning(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices(), position: decimal.NewFromInt(10)}
	m, _ := newTestManager(t, broker)
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	require.NoError(t, err)

	snapshot, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "AAPL", snapshot.TickerTrading)
	assert.Equal(t, "moving_average", snapshot.Strategy)
	assert.Equal(t, 2, snapshot.ShortTermInterval)
	assert.Equal(t, 4, snapshot.LongTermInterval)
	assert.Equal(t, store.StatusRunning, snapshot.Status)
	assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(1000)), "market value, got %s", snapshot.Balance)
}

func TestTickPlacesBuyOrder(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	m, _ := newTestManager(t, broker)
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(broker.placedOrders()) > 0
	}, 2*time.Second, 5*time.Millisecond, "expected a buy order to be placed")

	order := broker.placedOrders()[0]
	assert.Equal(t, models.Buy, order.Side)
	assert.Equal(t, models.Market, order.Type)
	assert.Equal(t, models.GTC, order.TimeInForce)
	assert.True(t, order.Qty.Equal(decimal.NewFromInt(371)), "floor(10000/26.94), got %s", order.Qty)
}

func TestTickSellsEntirePosition(t *testing.T) {
	// shortMA=20 < longMA=30 with 370 shares held
	broker := &fakeBrokerage{
		tradable: true,
		prices: []decimal.Decimal{
			decimal.NewFromInt(40),
			decimal.NewFromInt(40),
			decimal.NewFromInt(40),
			decimal.NewFromInt(20),
		},
		position: decimal.NewFromInt(370),
	}
	m, _ := newTestManager(t, broker)

	p := validParams()
	p.ShortWindow = 1
	p.LongWindow = 2
	_, err := m.Start(context.Background(), p)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(broker.placedOrders()) > 0
	}, 2*time.Second, 5*time.Millisecond, "expected a sell order to be placed")

	order := broker.placedOrders()[0]
	assert.Equal(t, models.Sell, order.Side)
	assert.True(t, order.Qty.Equal(decimal.NewFromInt(370)), "expected to sell all shares, got %s", order.Qty)
}

func TestMarketDataFailureDoesNotDisarmScheduler(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	broker.setPricesErr(errors.New("brokerage unavailable"))
	m, _ := newTestManager(t, broker)
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	require.NoError(t, err)

	// Let several failing ticks pass; the scheduler must survive them
	time.Sleep(50 * time.Millisecond)
	require.True(t, m.IsRunning())
	require.Empty(t, broker.placedOrders())

	// Once data comes back the loop trades again
	broker.setPricesErr(nil)
	require.Eventually(t, func() bool {
		return len(broker.placedOrders()) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUncheckableRiskSkipsOrder(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	broker.setAccountErr(errors.New("account endpoint unavailable"))
	m, _ := newTestManager(t, broker)
	ctx := context.Background()

	_, err := m.Start(ctx, validParams())
	require.NoError(t, err)

	// Buy signals fire but no order may go out unchecked
	time.Sleep(50 * time.Millisecond)
	require.True(t, m.IsRunning())
	require.Empty(t, broker.placedOrders())

	// With the account reachable again the order goes through
	broker.setAccountErr(nil)
	require.Eventually(t, func() bool {
		return len(broker.placedOrders()) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestResumeOnStartup(t *testing.T) {
	broker := &fakeBrokerage{tradable: true, prices: bullishPrices()}
	m, repo := newTestManager(t, broker)
	ctx := context.Background()

	// Simulate a previous process that exited while running
	require.NoError(t, repo.Replace(ctx, &store.BotConfig{
		Symbol:        "AAPL",
		Status:        store.StatusRunning,
		ShortInterval: 2,
		LongInterval:  4,
		TradeAmount:   decimal.RequireFromString("10000"),
		Strategy:      "moving_average",
	}))

	require.NoError(t, m.ResumeOnStartup(ctx))
	require.True(t, m.IsRunning())

	snapshot, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "AAPL", snapshot.TickerTrading)
	assert.Equal(t, 2, snapshot.ShortTermInterval)
	assert.Equal(t, 4, snapshot.LongTermInterval)
	assert.True(t, snapshot.StartAmount.Equal(decimal.RequireFromString("10000")))
}

func TestResumeOnStartupNoRow(t *testing.T) {
	m, _ := newTestManager(t, &fakeBrokerage{tradable: true})

	require.NoError(t, m.ResumeOnStartup(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestResumeValidationFailureMarksStopped(t *testing.T) {
	broker := &fakeBrokerage{tradable: false}
	m, repo := newTestManager(t, broker)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, &store.BotConfig{
		Symbol:        "GONE",
		Status:        store.StatusRunning,
		ShortInterval: 2,
		LongInterval:  4,
		TradeAmount:   decimal.RequireFromString("10000"),
		Strategy:      "moving_average",
	}))

	err := m.ResumeOnStartup(ctx)
	var serr *InvalidSymbolError
	require.ErrorAs(t, err, &serr)
	assert.False(t, m.IsRunning())

	row, err := repo.Get(ctx, "GONE")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, store.StatusStopped, row.Status)
}
