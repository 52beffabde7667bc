// Package domain holds the core trading types shared by the risk engine,
// gateways and stores. All money amounts use decimal.Decimal.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// TradeProposal is a strategy-generated candidate trade. It is immutable and
// consumed exactly once by the admission pipeline.
type TradeProposal struct {
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	OrderType OrderType
	Reason    string
	Timestamp time.Time
}

// Notional is the capital the proposal commits at its quoted price.
func (p TradeProposal) Notional() decimal.Decimal {
	return p.Price.Mul(p.Quantity)
}

// Order is an admitted proposal on its way to the execution service.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	OrderType OrderType
	Timestamp time.Time
}

func NewOrder(symbol string, side Side, price, qty decimal.Decimal, typ OrderType) Order {
	return Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		OrderType: typ,
		Timestamp: time.Now(),
	}
}

// OrderUpdate is a broker-side status change for a previously submitted order.
type OrderUpdate struct {
	OrderID        string
	Symbol         string
	Side           Side
	Status         OrderStatus
	FilledQty      decimal.Decimal
	FilledAvgPrice decimal.Decimal
	Timestamp      time.Time
}

// NormalizeSymbol strips separators so "BTC/USD" and "BTCUSD" compare equal.
// Brokers disagree on symbol formatting; position lookups go through this.
func NormalizeSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "/", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToUpper(s)
}
