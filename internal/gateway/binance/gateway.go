// Package binance adapts the go-binance spot client to the capability
// interfaces the risk engine consumes. Nothing in the core imports this
// package; it is wired in at composition time.
package binance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
	"tradeguard/internal/logger"
)

var log = logger.Component("binance")

// quoteAsset is the asset cash balances are read in.
const quoteAsset = "USDT"

type Gateway struct {
	client  *binance.Client
	symbols []string

	mu           sync.Mutex
	orderSymbols map[string]string // client order ID -> exchange symbol
}

func New(cfg config.BrokerConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("binance api credentials are required")
	}
	binance.UseTestnet = cfg.Testnet

	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, domain.NormalizeSymbol(s))
	}

	return &Gateway{
		client:       binance.NewClient(cfg.APIKey, cfg.APISecret),
		symbols:      symbols,
		orderSymbols: make(map[string]string),
	}, nil
}

func (g *Gateway) rememberOrder(clientOrderID, symbol string) {
	g.mu.Lock()
	g.orderSymbols[clientOrderID] = symbol
	g.mu.Unlock()
}

func (g *Gateway) symbolForOrder(clientOrderID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.orderSymbols[clientOrderID]
	return s, ok
}

func (g *Gateway) forgetOrder(clientOrderID string) {
	g.mu.Lock()
	delete(g.orderSymbols, clientOrderID)
	g.mu.Unlock()
}

func mapOrderStatus(status string) (domain.OrderStatus, bool) {
	switch status {
	case "NEW":
		return domain.OrderStatusPending, true
	case "FILLED":
		return domain.OrderStatusFilled, true
	case "CANCELED", "PENDING_CANCEL":
		return domain.OrderStatusCancelled, true
	case "REJECTED":
		return domain.OrderStatusRejected, true
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return domain.OrderStatusExpired, true
	default:
		// PARTIALLY_FILLED and anything unrecognized stays pending
		return domain.OrderStatusPending, false
	}
}

func mapSide(side domain.Side) binance.SideType {
	if side == domain.SideBuy {
		return binance.SideTypeBuy
	}
	return binance.SideTypeSell
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
