package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/epochscript/internal/domain"
)

const (
	wsDialTimeout        = 30 * time.Second
	wsWriteWait          = 10 * time.Second
	wsBaseReconnectDelay = 5 * time.Second
	wsMaxReconnectDelay  = 5 * time.Minute
)

// wireBarBatch is the on-wire msgpack envelope: one message carries one
// batch of bar updates for a class of assets.
type wireBarBatch struct {
	Bars []wireBar `msgpack:"bars"`
}

type wireBar struct {
	AssetId   string             `msgpack:"asset_id"`
	Exchange  string             `msgpack:"exchange"`
	Class     string             `msgpack:"class"`
	Timestamp int64              `msgpack:"timestamp"`
	Fields    map[string]float64 `msgpack:"fields"`
}

// WebSocketManager implements IWebSocketManager (spec §6), subscribing to a
// live bar-update feed and decoding msgpack-encoded batches. Connection
// lifecycle (dial/read-loop/reconnect-with-backoff) follows the teacher's
// MarketStatusWebSocket.
type WebSocketManager struct {
	url string
	log zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	cancelFunc context.CancelFunc
	assets     []domain.Asset
	callback   func(batch []BarUpdate)
	stopChan   chan struct{}
	stopped    bool
}

// NewWebSocketManager builds a manager dialing url.
func NewWebSocketManager(url string, log zerolog.Logger) *WebSocketManager {
	return &WebSocketManager{
		url:      url,
		log:      log.With().Str("component", "bar_websocket").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Subscribe implements IWebSocketManager: records the asset set to
// subscribe to and opens the connection, retrying with backoff in the
// background if the initial dial fails.
func (m *WebSocketManager) Subscribe(assets []domain.Asset) error {
	m.mu.Lock()
	m.assets = assets
	m.mu.Unlock()

	if err := m.connect(); err != nil {
		m.log.Warn().Err(err).Msg("initial websocket dial failed, reconnecting in background")
		go m.reconnectLoop()
		return nil
	}
	return nil
}

// HandleNewMessage implements IWebSocketManager.
func (m *WebSocketManager) HandleNewMessage(callback func(batch []BarUpdate)) {
	m.mu.Lock()
	m.callback = callback
	m.mu.Unlock()
}

// Close implements IWebSocketManager.
func (m *WebSocketManager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stopChan)
	return m.disconnect()
}

func (m *WebSocketManager) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial bar websocket: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	m.conn = conn
	m.cancelFunc = connCancel

	go m.readLoop(connCtx, conn)
	m.log.Info().Str("url", m.url).Msg("connected to bar update websocket")
	return nil
}

func (m *WebSocketManager) disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
		m.cancelFunc = nil
	}
	err := m.conn.Close(websocket.StatusNormalClosure, "")
	m.conn = nil
	return err
}

func (m *WebSocketManager) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		m.mu.RLock()
		stopped := m.stopped
		m.mu.RUnlock()
		if !stopped {
			go m.reconnectLoop()
		}
	}()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Error().Err(err).Msg("bar websocket read error")
			}
			return
		}
		if msgType != websocket.MessageBinary {
			continue
		}
		if err := m.handleMessage(data); err != nil {
			m.log.Error().Err(err).Msg("failed to decode bar update message")
		}
	}
}

func (m *WebSocketManager) handleMessage(data []byte) error {
	var batch wireBarBatch
	if err := msgpack.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("unmarshal bar batch: %w", err)
	}

	out := make([]BarUpdate, len(batch.Bars))
	for i, b := range batch.Bars {
		out[i] = BarUpdate{
			Asset: domain.Asset{
				Id:       b.AssetId,
				Exchange: b.Exchange,
				Class:    domain.AssetClass(b.Class),
			},
			Timestamp: b.Timestamp,
			Fields:    b.Fields,
		}
	}

	m.mu.RLock()
	cb := m.callback
	m.mu.RUnlock()
	if cb != nil {
		cb(out)
	}
	return nil
}

func (m *WebSocketManager) reconnectLoop() {
	delay := wsBaseReconnectDelay
	for {
		select {
		case <-m.stopChan:
			return
		case <-time.After(delay):
		}

		if err := m.connect(); err != nil {
			m.log.Warn().Err(err).Dur("next_retry", delay).Msg("bar websocket reconnect failed")
			delay *= 2
			if delay > wsMaxReconnectDelay {
				delay = wsMaxReconnectDelay
			}
			continue
		}
		return
	}
}
