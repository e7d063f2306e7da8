package toolkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"council/internal/gateway/binance"
)

// KlineSource is the slice of the exchange gateway the toolkit needs.
type KlineSource interface {
	FetchDaily(ctx context.Context, symbol string, endOfDay int64, limit int) ([]binance.Candle, error)
}

// Toolkit renders a market data report for one symbol and trade date.
// Analysts receive the report verbatim in their prompt.
type Toolkit struct {
	source   KlineSource
	lookback int
}

func New(source KlineSource) *Toolkit {
	return &Toolkit{source: source, lookback: 120}
}

// MarketContext fetches daily candles up to date (YYYY-MM-DD, UTC) and
// summarizes price action plus a standard indicator set.
func (t *Toolkit) MarketContext(ctx context.Context, symbol, date string) (string, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid trade date %q: %w", date, err)
	}
	endOfDay := day.Add(24*time.Hour).UnixMilli() - 1

	candles, err := t.source.FetchDaily(ctx, symbol, endOfDay, t.lookback)
	if err != nil {
		return "", fmt.Errorf("fetching klines for %s: %w", symbol, err)
	}
	if len(candles) < minCandles {
		return "", fmt.Errorf("insufficient history for %s: %d candles", symbol, len(candles))
	}

	return renderReport(symbol, date, candles), nil
}

func renderReport(symbol, date string, candles []binance.Candle) string {
	snap := computeSnapshot(candles)
	last := candles[len(candles)-1]
	weekAgo := candles[max(0, len(candles)-8)]
	monthAgo := candles[max(0, len(candles)-31)]

	var b strings.Builder
	fmt.Fprintf(&b, "Market data for %s as of %s (%d daily candles)\n", symbol, date, len(candles))
	fmt.Fprintf(&b, "Close: %s  High: %s  Low: %s  Volume: %s\n",
		fmtPrice(last.Close), fmtPrice(last.High), fmtPrice(last.Low), fmtPrice(last.Volume))
	fmt.Fprintf(&b, "Change 7d: %s%%  Change 30d: %s%%\n",
		pctChange(weekAgo.Close, last.Close), pctChange(monthAgo.Close, last.Close))
	b.WriteString("\nIndicators:\n")
	fmt.Fprintf(&b, "  SMA10=%s SMA50=%s EMA10=%s (trend: %s)\n",
		fmtPrice(snap.SMA10), fmtPrice(snap.SMA50), fmtPrice(snap.EMA10), snap.trendWord())
	fmt.Fprintf(&b, "  MACD=%s signal=%s hist=%s\n",
		fmtPrice(snap.MACD), fmtPrice(snap.Signal), fmtPrice(snap.Hist))
	fmt.Fprintf(&b, "  RSI14=%.1f (%s)\n", snap.RSI14, snap.momentumWord())
	fmt.Fprintf(&b, "  BOLL upper=%s mid=%s lower=%s\n",
		fmtPrice(snap.BollUp), fmtPrice(snap.BollMd), fmtPrice(snap.BollLo))
	fmt.Fprintf(&b, "  ATR14=%s\n", fmtPrice(snap.ATR14))
	return b.String()
}

// fmtPrice trims float noise without losing precision on small-cap prices.
func fmtPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

func pctChange(from, to float64) string {
	if from == 0 {
		return "0"
	}
	fromDec := decimal.NewFromFloat(from)
	return decimal.NewFromFloat(to).Sub(fromDec).
		Div(fromDec).Mul(decimal.NewFromInt(100)).Round(2).String()
}
