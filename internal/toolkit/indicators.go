package toolkit

import (
	"github.com/markcheno/go-talib"

	"council/internal/gateway/binance"
)

// minCandles is the shortest window the indicator set stays meaningful on.
const minCandles = 60

type snapshot struct {
	Close  float64
	SMA10  float64
	SMA50  float64
	EMA10  float64
	MACD   float64
	Signal float64
	Hist   float64
	RSI14  float64
	BollUp float64
	BollMd float64
	BollLo float64
	ATR14  float64
}

func computeSnapshot(candles []binance.Candle) snapshot {
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	sma10 := talib.Sma(closes, 10)
	sma50 := talib.Sma(closes, 50)
	ema10 := talib.Ema(closes, 10)
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	rsi := talib.Rsi(closes, 14)
	up, mid, lo := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	atr := talib.Atr(highs, lows, closes, 14)

	last := n - 1
	return snapshot{
		Close:  closes[last],
		SMA10:  sma10[last],
		SMA50:  sma50[last],
		EMA10:  ema10[last],
		MACD:   macd[last],
		Signal: signal[last],
		Hist:   hist[last],
		RSI14:  rsi[last],
		BollUp: up[last],
		BollMd: mid[last],
		BollLo: lo[last],
		ATR14:  atr[last],
	}
}

func (s snapshot) trendWord() string {
	switch {
	case s.Close > s.SMA10 && s.SMA10 > s.SMA50:
		return "uptrend"
	case s.Close < s.SMA10 && s.SMA10 < s.SMA50:
		return "downtrend"
	default:
		return "mixed"
	}
}

func (s snapshot) momentumWord() string {
	switch {
	case s.RSI14 >= 70:
		return "overbought"
	case s.RSI14 <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}
