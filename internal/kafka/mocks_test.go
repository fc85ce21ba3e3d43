package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

type mockReader struct {
	cfg  kafka.ReaderConfig
	msgs chan kafka.Message

	mu         sync.Mutex
	closeCalls int
}

func newMockReader(topic string, buffer int) *mockReader {
	return &mockReader{
		cfg:  kafka.ReaderConfig{Topic: topic},
		msgs: make(chan kafka.Message, buffer),
	}
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) Close() error {
	r.mu.Lock()
	r.closeCalls++
	r.mu.Unlock()
	return nil
}

func (r *mockReader) Config() kafka.ReaderConfig {
	return r.cfg
}

func (r *mockReader) CloseCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCalls
}

type mockWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

type mockFillRepo struct {
	mu    sync.Mutex
	fills map[string]*models.Fill // key: orderID:source
	saved chan struct{}
}

func newMockFillRepo() *mockFillRepo {
	return &mockFillRepo{fills: make(map[string]*models.Fill)}
}

func (m *mockFillRepo) CreateFill(f *models.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = len(m.fills) + 1
	m.fills[f.OrderID+":"+f.Source] = f
	if m.saved != nil {
		select {
		case m.saved <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *mockFillRepo) FillExistsByOrderID(orderID, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fills[orderID+":"+source]
	return ok, nil
}

func (m *mockFillRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fills)
}

type mockBarRepo struct {
	bars []*models.PriceBar
}

func (m *mockBarRepo) UpsertPriceBar(b *models.PriceBar) error {
	m.bars = append(m.bars, b)
	return nil
}

type mockQuoteCache struct {
	quotes map[string]decimal.Decimal
}

func (m *mockQuoteCache) SetQuote(_ context.Context, symbol string, price decimal.Decimal, _ time.Time) error {
	if m.quotes == nil {
		m.quotes = make(map[string]decimal.Decimal)
	}
	m.quotes[symbol] = price
	return nil
}

type mockPositionsRepo struct {
	mu       sync.Mutex
	stored   map[string]*models.Position
	calls    int
	last     []*models.Position
	accounts []*models.AccountInfo
	called   chan struct{}
}

func (m *mockPositionsRepo) GetAllPositions() (map[string]*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.Position, len(m.stored))
	for k, v := range m.stored {
		out[k] = v
	}
	return out, nil
}

func (m *mockPositionsRepo) ReplaceAllPositions(positions []*models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.last = positions
	m.stored = make(map[string]*models.Position, len(positions))
	for _, p := range positions {
		m.stored[p.Symbol] = p
	}
	return nil
}

func (m *mockPositionsRepo) UpsertAccount(a *models.AccountInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, a)
	if m.called != nil {
		select {
		case m.called <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *mockPositionsRepo) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockPositionsRepo) LastPositions() []*models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
