package indicators

// These oscillators are computed here rather than through talib because
// talib's fixed absolute epsilons report 0 for flat windows and for
// micro-priced tokens, which reads as deeply oversold instead of neutral.

// wilderRSI returns RSI values aligned to closes[period:].
func wilderRSI(closes []float64, period int) []float64 {
	if period < 1 || len(closes) <= period {
		return nil
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	p := float64(period)
	gain /= p
	loss /= p

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiValue(gain, loss))
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
		out = append(out, rsiValue(gain, loss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	default:
		return 100 - 100/(1+avgGain/avgLoss)
	}
}

// highestLowest returns max(high) and min(low) over [i-period+1, i].
func highestLowest(highs, lows []float64, i, period int) (float64, float64) {
	hh, ll := highs[i], lows[i]
	for j := i - period + 1; j < i; j++ {
		if highs[j] > hh {
			hh = highs[j]
		}
		if lows[j] < ll {
			ll = lows[j]
		}
	}
	return hh, ll
}

// fastStochastic returns %K aligned to closes[kPeriod-1:] and %D (SMA of %K)
// aligned to closes[kPeriod+dPeriod-2:].
func fastStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) ([]float64, []float64) {
	if len(closes) < kPeriod+dPeriod-1 {
		return nil, nil
	}
	k := make([]float64, 0, len(closes)-kPeriod+1)
	for i := kPeriod - 1; i < len(closes); i++ {
		hh, ll := highestLowest(highs, lows, i, kPeriod)
		if hh == ll {
			k = append(k, 50)
			continue
		}
		k = append(k, 100*(closes[i]-ll)/(hh-ll))
	}
	d := make([]float64, 0, len(k)-dPeriod+1)
	for i := dPeriod - 1; i < len(k); i++ {
		s := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			s += k[j]
		}
		d = append(d, s/float64(dPeriod))
	}
	return k, d
}

// williamsR returns %R aligned to closes[period-1:].
func williamsR(highs, lows, closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	for i := period - 1; i < len(closes); i++ {
		hh, ll := highestLowest(highs, lows, i, period)
		if hh == ll {
			out = append(out, -50)
			continue
		}
		out = append(out, -100*(hh-closes[i])/(hh-ll))
	}
	return out
}
