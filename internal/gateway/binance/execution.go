package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
)

// Execute submits the order with our internal ID as the client order ID so
// user-data-stream updates can be correlated back without a broker-side map.
func (g *Gateway) Execute(ctx context.Context, order domain.Order) error {
	symbol := domain.NormalizeSymbol(order.Symbol)
	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(mapSide(order.Side)).
		Quantity(order.Quantity.String()).
		NewClientOrderID(order.ID)

	switch order.OrderType {
	case domain.OrderTypeMarket:
		svc = svc.Type(binance.OrderTypeMarket)
	default:
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(order.Price.String())
	}

	g.rememberOrder(order.ID, symbol)
	if _, err := svc.Do(ctx); err != nil {
		g.forgetOrder(order.ID)
		return fmt.Errorf("create order %s %s: %w", order.Side, symbol, err)
	}
	log.Debugf("submitted %s %s %s (%s)", order.Side, order.Quantity, symbol, order.OrderType)
	return nil
}

// GetPortfolio reads the spot account. Cash is the free quote-asset balance;
// every other non-zero balance becomes a position. Spot balances carry no
// entry price, so AveragePrice is zero and valuation relies on live marks.
func (g *Gateway) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("get account: %w", err)
	}

	portfolio := domain.NewPortfolio()
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil || free.IsZero() {
			continue
		}
		if b.Asset == quoteAsset {
			portfolio.Cash = free
			continue
		}
		symbol := domain.NormalizeSymbol(b.Asset + quoteAsset)
		portfolio.Positions[symbol] = domain.Position{
			Symbol:   symbol,
			Quantity: free,
		}
	}
	return portfolio, nil
}

func (g *Gateway) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	for _, symbol := range g.symbols {
		orders, err := g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("list open orders for %s: %w", symbol, err)
		}
		for _, o := range orders {
			out = append(out, convertOrder(o))
		}
	}
	return out, nil
}

func (g *Gateway) GetTodayOrders(ctx context.Context) ([]domain.Order, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	var out []domain.Order
	for _, symbol := range g.symbols {
		orders, err := g.client.NewListOrdersService().
			Symbol(symbol).
			StartTime(midnight.UnixMilli()).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("list orders for %s: %w", symbol, err)
		}
		for _, o := range orders {
			out = append(out, convertOrder(o))
		}
	}
	return out, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	symbol, ok := g.symbolForOrder(orderID)
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrigClientOrderID(orderID).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

func (g *Gateway) CancelAllOrders(ctx context.Context) error {
	open, err := g.GetOpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range open {
		symbol := domain.NormalizeSymbol(o.Symbol)
		if _, err := g.client.NewCancelOrderService().
			Symbol(symbol).
			OrigClientOrderID(o.ID).
			Do(ctx); err != nil {
			log.Warnf("cancel %s on %s failed: %v", o.ID, symbol, err)
		}
	}
	return nil
}

func convertOrder(o *binance.Order) domain.Order {
	price, _ := decimal.NewFromString(o.Price)
	qty, _ := decimal.NewFromString(o.OrigQuantity)
	var side domain.Side
	if o.Side == binance.SideTypeBuy {
		side = domain.SideBuy
	} else {
		side = domain.SideSell
	}
	typ := domain.OrderTypeLimit
	if o.Type == binance.OrderTypeMarket {
		typ = domain.OrderTypeMarket
	}
	return domain.Order{
		ID:        o.ClientOrderID,
		Symbol:    o.Symbol,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		OrderType: typ,
		Timestamp: msToTime(o.Time),
	}
}
