package toolkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"council/internal/gateway/binance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles []binance.Candle
	err     error

	gotSymbol string
	gotEnd    int64
}

func (f *fakeSource) FetchDaily(_ context.Context, symbol string, endOfDay int64, _ int) ([]binance.Candle, error) {
	f.gotSymbol = symbol
	f.gotEnd = endOfDay
	return f.candles, f.err
}

func risingCandles(n int) []binance.Candle {
	out := make([]binance.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		price := 100 + float64(i)
		out[i] = binance.Candle{
			OpenTime:  base.AddDate(0, 0, i).UnixMilli(),
			CloseTime: base.AddDate(0, 0, i+1).UnixMilli() - 1,
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func TestMarketContextReport(t *testing.T) {
	src := &fakeSource{candles: risingCandles(120)}
	tk := New(src)

	report, err := tk.MarketContext(context.Background(), "ETHUSDT", "2024-05-10")
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", src.gotSymbol)
	wantEnd := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC).UnixMilli() - 1
	assert.Equal(t, wantEnd, src.gotEnd)

	assert.Contains(t, report, "Market data for ETHUSDT as of 2024-05-10")
	assert.Contains(t, report, "uptrend")
	assert.Contains(t, report, "RSI14=")
	assert.Contains(t, report, "BOLL upper=")
	assert.Contains(t, report, "Change 7d:")
}

func TestMarketContextInvalidDate(t *testing.T) {
	tk := New(&fakeSource{candles: risingCandles(120)})
	_, err := tk.MarketContext(context.Background(), "ETHUSDT", "05/10/2024")
	assert.Error(t, err)
}

func TestMarketContextInsufficientHistory(t *testing.T) {
	tk := New(&fakeSource{candles: risingCandles(10)})
	_, err := tk.MarketContext(context.Background(), "NEWCOIN", "2024-05-10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient history")
}

func TestMarketContextSourceError(t *testing.T) {
	cause := errors.New("dial timeout")
	tk := New(&fakeSource{err: cause})
	_, err := tk.MarketContext(context.Background(), "ETHUSDT", "2024-05-10")
	assert.ErrorIs(t, err, cause)
}
