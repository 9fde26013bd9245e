// Package indicators computes the trailing price indicators the
// momentum ranking is built from. Every function takes a full bar
// series ascending by date and looks back from its last element, so
// callers control the as-of date by slicing the series first.
package indicators

import (
	"errors"
	"fmt"

	"momentum/internal/domain"

	"github.com/montanaflynn/stats"
)

// InsufficientDataError marks a series too short for the requested
// lookback. Scorer and filter absorb these by excluding the symbol for
// that date; they are never fatal.
type InsufficientDataError struct {
	Err error
}

func (e InsufficientDataError) Error() string {
	return e.Err.Error()
}

func IsInsufficientData(err error) bool {
	var e InsufficientDataError
	return errors.As(err, &e)
}

func insufficientData(format string, args ...interface{}) error {
	return InsufficientDataError{fmt.Errorf(format, args...)}
}

// TrailingReturn is the percent return over the last days bars.
func TrailingReturn(bars []domain.Bar, days int) (float64, error) {
	if len(bars) < days {
		return 0, insufficientData("need %d bars for trailing return, have %d", days, len(bars))
	}

	recent := bars[len(bars)-1].Close
	past := bars[len(bars)-days].Close

	return ((recent - past) / past) * 100, nil
}

// RSI is the relative strength index over the given period, using
// simple averages of the last period gains and losses.
func RSI(bars []domain.Bar, period int) (float64, error) {
	if len(bars) < period+1 {
		return 0, insufficientData("need %d bars for %d-period rsi, have %d", period+1, period, len(bars))
	}

	var avgGain, avgLoss float64
	for i := len(bars) - period; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		// no losing day in the window
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// SMA is the simple moving average of the last period closes.
func SMA(bars []domain.Bar, period int) (float64, error) {
	if len(bars) < period {
		return 0, insufficientData("need %d bars for sma, have %d", period, len(bars))
	}

	closes := make([]float64, period)
	for i, bar := range bars[len(bars)-period:] {
		closes[i] = bar.Close
	}
	return stats.Mean(closes)
}

// EMA is the span-based exponential moving average over the whole
// series, alpha = 2 / (period + 1).
func EMA(bars []domain.Bar, period int) (float64, error) {
	if len(bars) < period {
		return 0, insufficientData("need %d bars for ema, have %d", period, len(bars))
	}

	alpha := 2.0 / (float64(period) + 1.0)
	ema := bars[0].Close
	for _, bar := range bars[1:] {
		ema = alpha*bar.Close + (1-alpha)*ema
	}
	return ema, nil
}

// HighProximity is the last close as a percentage of the highest close
// in the trailing lookback window. 100 means the symbol closed at its
// window high.
func HighProximity(bars []domain.Bar, lookback int) (float64, error) {
	if len(bars) < lookback {
		return 0, insufficientData("need %d bars for high proximity, have %d", lookback, len(bars))
	}

	current := bars[len(bars)-1].Close
	highest := bars[len(bars)-lookback].Close
	for _, bar := range bars[len(bars)-lookback:] {
		if bar.Close > highest {
			highest = bar.Close
		}
	}

	return (current / highest) * 100, nil
}

// AvgVolume is the mean volume over the trailing window.
func AvgVolume(bars []domain.Bar, window int) (float64, error) {
	if len(bars) < window {
		return 0, insufficientData("need %d bars for avg volume, have %d", window, len(bars))
	}

	volumes := make([]float64, window)
	for i, bar := range bars[len(bars)-window:] {
		volumes[i] = bar.Volume
	}
	return stats.Mean(volumes)
}

// MedianTradedValue is the median of close * volume over the trailing
// window, the liquidity gate used by the ranking.
func MedianTradedValue(bars []domain.Bar, window int) (float64, error) {
	if len(bars) < window {
		return 0, insufficientData("need %d bars for median traded value, have %d", window, len(bars))
	}

	values := make([]float64, window)
	for i, bar := range bars[len(bars)-window:] {
		values[i] = bar.Close * bar.Volume
	}
	return stats.Median(values)
}
