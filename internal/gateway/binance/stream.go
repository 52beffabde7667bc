package binance

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
	"tradeguard/internal/market"
)

// SubscribeOrderUpdates opens the user data stream and converts execution
// reports into OrderUpdates. The stream reconnects with backoff until ctx is
// cancelled; the returned channel closes when it gives up.
func (g *Gateway) SubscribeOrderUpdates(ctx context.Context) (<-chan domain.OrderUpdate, error) {
	listenKey, err := g.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.OrderUpdate, 128)

	go g.keepAliveLoop(ctx, listenKey)
	go func() {
		defer close(out)
		g.runUserDataLoop(ctx, listenKey, out)
	}()
	return out, nil
}

func (g *Gateway) keepAliveLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := g.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				log.Warnf("listen key keepalive failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) runUserDataLoop(ctx context.Context, listenKey string, out chan<- domain.OrderUpdate) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		handler := func(event *binance.WsUserDataEvent) {
			if event.Event != binance.UserDataEventTypeExecutionReport {
				return
			}
			update, ok := convertExecutionReport(event.OrderUpdate)
			if !ok {
				return
			}
			if update.Status != domain.OrderStatusPending {
				g.forgetOrder(update.OrderID)
			}
			select {
			case out <- update:
			case <-ctx.Done():
			default:
				log.Warnf("order update channel full, dropped %s for %s", update.Status, update.Symbol)
			}
		}
		errHandler := func(err error) {
			if err != nil {
				log.Warnf("user data stream error: %v", err)
			}
		}

		doneC, stopC, err := binance.WsUserDataServe(listenKey, handler, errHandler)
		if err != nil {
			log.Errorf("user data stream connect failed: %v", err)
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		log.Warnf("user data stream disconnected, reconnecting")
	}
}

// convertExecutionReport maps a ws order update to the domain type. Partial
// fills are not terminal and are skipped.
func convertExecutionReport(o binance.WsOrderUpdate) (domain.OrderUpdate, bool) {
	status, known := mapOrderStatus(o.Status)
	if !known {
		return domain.OrderUpdate{}, false
	}

	side := domain.SideSell
	if o.Side == string(binance.SideTypeBuy) {
		side = domain.SideBuy
	}

	filledQty, _ := decimal.NewFromString(o.FilledVolume)
	filledQuote, _ := decimal.NewFromString(o.FilledQuoteVolume)
	avgPrice := decimal.Zero
	if filledQty.IsPositive() {
		avgPrice = filledQuote.Div(filledQty)
	}

	return domain.OrderUpdate{
		OrderID:        o.ClientOrderId,
		Symbol:         o.Symbol,
		Side:           side,
		Status:         status,
		FilledQty:      filledQty,
		FilledAvgPrice: avgPrice,
		Timestamp:      msToTime(o.TransactionTime),
	}, true
}

// StreamBookTickers feeds best bid/ask updates into the spread cache,
// reconnecting with backoff until ctx is cancelled.
func (g *Gateway) StreamBookTickers(ctx context.Context, cache *market.SpreadCache) {
	if len(g.symbols) == 0 {
		log.Warnf("no symbols configured, book ticker stream disabled")
		return
	}

	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		handler := func(event *binance.WsBookTickerEvent) {
			bid, err1 := decimal.NewFromString(event.BestBidPrice)
			ask, err2 := decimal.NewFromString(event.BestAskPrice)
			if err1 != nil || err2 != nil {
				return
			}
			cache.Update(event.Symbol, bid, ask)
		}
		errHandler := func(err error) {
			if err != nil {
				log.Warnf("book ticker stream error: %v", err)
			}
		}

		doneC, stopC, err := binance.WsCombinedBookTickerServe(g.symbols, handler, errHandler)
		if err != nil {
			log.Errorf("book ticker connect failed: %v", err)
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		log.Warnf("book ticker disconnected, reconnecting")
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
