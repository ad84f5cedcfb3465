package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/config"
	"github.com/macross-trading/macross/internal/models"
	"github.com/macross-trading/macross/internal/risk"
	"github.com/macross-trading/macross/internal/signal"
	"github.com/macross-trading/macross/internal/store"
)

// barBuffer is fetched on top of the long window so a few missing bars do
// not starve the averages
const barBuffer = 5

// Brokerage is the slice of the Alpaca client the bot engine depends on
type Brokerage interface {
	GetClosingPrices(ctx context.Context, symbol, timeframe string, limit int) ([]decimal.Decimal, error)
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	PlaceOrder(ctx context.Context, order *models.OrderRequest) (*models.Order, error)
	IsTradable(ctx context.Context, symbol string) bool
	GetAccount(ctx context.Context) (*models.Account, error)
}

// StartParams are the client-supplied parameters for a trading job
type StartParams struct {
	Symbol      string          `json:"symbol" validate:"required"`
	ShortWindow int             `json:"short_window" validate:"required,gt=0"`
	LongWindow  int             `json:"long_window" validate:"required,gt=0"`
	TradeAmount decimal.Decimal `json:"trade_amount" validate:"-"`
	Strategy    string          `json:"strategy" validate:"required"`
}

// StatusSnapshot is the running-bot report returned by Status. Field names
// match the dashboard contract.
type StatusSnapshot struct {
	TickerTrading     string          `json:"tickerTrading"`
	Balance           decimal.Decimal `json:"balance"`
	Strategy          string          `json:"strategy"`
	ShortTermInterval int             `json:"shortTermInterval"`
	LongTermInterval  int             `json:"longTermInterval"`
	StartAmount       decimal.Decimal `json:"startAmount"`
	Status            store.Status    `json:"status"`
}

// Manager owns the single trading job of this process: the scheduling
// timer, the in-process exclusivity guard, and the persisted bot row.
type Manager struct {
	repo     store.Repository
	client   Brokerage
	risk     *risk.Manager
	validate *validator.Validate
	logger   *zap.Logger

	tickInterval time.Duration
	tickTimeout  time.Duration
	timeframe    string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a new bot manager
func NewManager(repo store.Repository, client Brokerage, riskMgr *risk.Manager, logger *zap.Logger, cfg *config.Config) *Manager {
	return &Manager{
		repo:         repo,
		client:       client,
		risk:         riskMgr,
		validate:     validator.New(),
		logger:       logger.With(zap.String("component", "bot_manager")),
		tickInterval: cfg.TickInterval,
		tickTimeout:  cfg.TickTimeout,
		timeframe:    cfg.BarTimeframe,
	}
}

// IsRunning reports whether a scheduling timer is armed in this process
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start validates params, replaces the persisted bot row, and arms the
// recurring timer. Exactly one job may run per process; a second Start
// without an intervening Stop fails with ErrAlreadyRunning.
func (m *Manager) Start(ctx context.Context, p StartParams) (string, error) {
	if err := m.validate.Struct(p); err != nil {
		return "", &ValidationError{Message: fmt.Sprintf("invalid start parameters: %v", err)}
	}
	if !p.TradeAmount.IsPositive() {
		return "", &ValidationError{Message: "trade_amount must be a positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return "", ErrAlreadyRunning
	}

	if !m.client.IsTradable(ctx, p.Symbol) {
		return "", &InvalidSymbolError{Symbol: p.Symbol}
	}

	// Snapshot the account balance for the audit row. Best effort: a
	// failure here does not block the start.
	initialBalance := decimal.Zero
	if account, err := m.client.GetAccount(ctx); err != nil {
		m.logger.Warn("could not fetch account for initial balance", zap.Error(err))
	} else {
		initialBalance = account.Cash
	}

	row := &store.BotConfig{
		Symbol:         p.Symbol,
		Status:         store.StatusRunning,
		InitialBalance: initialBalance,
		ShortInterval:  p.ShortWindow,
		LongInterval:   p.LongWindow,
		TradeAmount:    p.TradeAmount,
		Strategy:       p.Strategy,
	}
	if err := m.repo.Replace(ctx, row); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(runCtx, m.done, p)

	m.logger.Info("bot started",
		zap.String("symbol", p.Symbol),
		zap.Int("short_window", p.ShortWindow),
		zap.Int("long_window", p.LongWindow),
		zap.String("trade_amount", p.TradeAmount.String()),
		zap.String("strategy", p.Strategy))

	return fmt.Sprintf("bot started for %s with strategy: %d-%d", p.Symbol, p.ShortWindow, p.LongWindow), nil
}

// Stop disarms the timer and marks the persisted row stopped. An in-flight
// tick is allowed to finish; only future ticks are prevented.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}

	m.cancel()
	<-m.done
	m.running = false
	m.cancel = nil
	m.done = nil

	if err := m.repo.StopAll(ctx); err != nil {
		// Timer is disarmed but the row still says running
		return err
	}

	m.logger.Info("bot stopped")
	return nil
}

// Status returns a snapshot of the running job, or nil when no job is
// running. In-process state wins: with no timer armed the store is not
// consulted.
func (m *Manager) Status(ctx context.Context) (*StatusSnapshot, error) {
	if !m.IsRunning() {
		return nil, nil
	}

	row, err := m.repo.GetRunning(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	marketValue := decimal.Zero
	if position, err := m.client.GetPosition(ctx, row.Symbol); err != nil {
		m.logger.Warn("could not fetch position for status", zap.String("symbol", row.Symbol), zap.Error(err))
	} else {
		marketValue = position.MarketValue
	}

	return &StatusSnapshot{
		TickerTrading:     row.Symbol,
		Balance:           marketValue,
		Strategy:          row.Strategy,
		ShortTermInterval: row.ShortInterval,
		LongTermInterval:  row.LongInterval,
		StartAmount:       row.TradeAmount,
		Status:            row.Status,
	}, nil
}

// ResumeOnStartup re-arms the scheduler from a persisted running row, if
// any. Called once at boot, before serving requests. A row that no longer
// validates (symbol delisted, store unreadable) is marked stopped so the
// store cannot wedge on it.
func (m *Manager) ResumeOnStartup(ctx context.Context) error {
	row, err := m.repo.GetRunning(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		m.logger.Info("no running bot to resume")
		return nil
	}

	params := StartParams{
		Symbol:      row.Symbol,
		ShortWindow: row.ShortInterval,
		LongWindow:  row.LongInterval,
		TradeAmount: row.TradeAmount,
		Strategy:    row.Strategy,
	}

	if _, err := m.Start(ctx, params); err != nil {
		m.logger.Error("failed to resume bot from persisted state",
			zap.String("symbol", row.Symbol), zap.Error(err))
		if serr := m.repo.SetStatus(ctx, row.Symbol, store.StatusStopped); serr != nil {
			m.logger.Error("failed to mark unresumable bot stopped", zap.Error(serr))
		}
		return err
	}

	m.logger.Info("resumed bot from persisted state", zap.String("symbol", row.Symbol))
	return nil
}

// run is the scheduling loop. Ticks execute on this single goroutine, so a
// slow tick delays the next instead of overlapping it.
func (m *Manager) run(ctx context.Context, done chan struct{}, p StartParams) {
	defer close(done)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	m.logger.Info("scheduler armed",
		zap.String("symbol", p.Symbol),
		zap.Duration("interval", m.tickInterval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(p)
		}
	}
}

// tick runs one fetch → evaluate → submit cycle. Every failure is logged
// and ends the tick; nothing here can disarm the timer. The tick carries
// its own deadline so a hung brokerage call cannot stall the scheduler, and
// it deliberately does not descend from the run context: a Stop lets the
// in-flight tick finish.
func (m *Manager) tick(p StartParams) {
	ctx, cancel := context.WithTimeout(context.Background(), m.tickTimeout)
	defer cancel()

	log := m.logger.With(zap.String("symbol", p.Symbol))

	prices, err := m.client.GetClosingPrices(ctx, p.Symbol, m.timeframe, p.LongWindow+barBuffer)
	if err != nil {
		log.Error("failed to fetch closing prices", zap.Error(err))
		return
	}

	position, err := m.client.GetPosition(ctx, p.Symbol)
	if err != nil {
		log.Error("failed to fetch position", zap.Error(err))
		return
	}

	decision := signal.Evaluate(prices, position.Qty, signal.Params{
		ShortWindow: p.ShortWindow,
		LongWindow:  p.LongWindow,
		TradeAmount: p.TradeAmount,
	})

	log.Info("tick evaluated",
		zap.String("action", string(decision.Action)),
		zap.String("short_ma", decision.ShortMA.StringFixed(3)),
		zap.String("long_ma", decision.LongMA.StringFixed(3)),
		zap.String("position", position.Qty.String()),
		zap.String("reason", decision.Reason))

	if decision.Action != signal.ActionBuy && decision.Action != signal.ActionSell {
		return
	}

	m.submitOrder(ctx, log, p.Symbol, decision)
}

// submitOrder places the decided order after a pre-trade risk check.
// A rejected or failed order is logged and left alone; the next tick
// re-evaluates from live brokerage state.
func (m *Manager) submitOrder(ctx context.Context, log *zap.Logger, symbol string, decision signal.Decision) {
	order := &models.OrderRequest{
		Symbol:      symbol,
		Qty:         decision.Qty,
		Side:        models.OrderSide(decision.Action),
		Type:        models.Market,
		TimeInForce: models.GTC,
	}

	// An order that cannot be risk-checked is not placed; the next tick
	// re-evaluates with a reachable account endpoint
	account, err := m.client.GetAccount(ctx)
	if err != nil {
		log.Warn("could not fetch account for risk check, skipping order", zap.Error(err))
		return
	}
	if result := m.risk.ValidateOrder(order, account, decision.LastClose); !result.Passed {
		log.Warn("order rejected by risk check", zap.String("reason", result.Reason))
		return
	}

	placed, err := m.client.PlaceOrder(ctx, order)
	if err != nil {
		log.Error("failed to place order",
			zap.String("side", string(order.Side)),
			zap.String("qty", order.Qty.String()),
			zap.Error(err))
		return
	}

	log.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.String("side", string(placed.Side)),
		zap.String("qty", placed.Qty.String()),
		zap.String("status", placed.Status))
}
