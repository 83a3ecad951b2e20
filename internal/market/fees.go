package market

import "math"

var baseGas = map[string]int{
	"mint":            150_000,
	"transfer":        21_000,
	"stake":           80_000,
	"research_submit": 120_000,
	"validation":      60_000,
}

var gasCongestion = map[Congestion]float64{
	CongestionLow:      1.0,
	CongestionMedium:   1.2,
	CongestionHigh:     1.5,
	CongestionCritical: 2.0,
}

var confirmCongestion = map[Congestion]float64{
	CongestionLow:      1.0,
	CongestionMedium:   1.3,
	CongestionHigh:     2.0,
	CongestionCritical: 3.5,
}

// GasEstimate prices a transaction in gas units for the current congestion.
func (s *Simulator) GasEstimate(txType string, hasData bool) int {
	gas, ok := baseGas[txType]
	if !ok {
		gas = 50_000
	}
	complexity := 1.0
	if hasData {
		complexity = 1.2
	}
	return int(math.Floor(float64(gas) * complexity * gasCongestion[s.network.Congestion]))
}

// ConfirmationTime estimates seconds until six confirmations.
func (s *Simulator) ConfirmationTime() int {
	base := float64(s.network.BlockTime * 6)
	jitter := 0.8 + s.rng.Float64()*0.4
	return int(math.Floor(base * confirmCongestion[s.network.Congestion] * jitter))
}

// NetworkFee converts gas to a fee at the current gas price.
func (s *Simulator) NetworkFee(gas int) float64 {
	return float64(gas) * s.network.GasPrice / 1_000_000
}
