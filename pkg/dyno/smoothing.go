package dyno

// Tap is one entry of a centered smoothing window.
type Tap struct {
	Offset int
	Weight float64
}

var (
	// PowerTaps is the wide first-pass window.
	PowerTaps = []Tap{
		{-4, 0.2}, {-3, 0.4}, {-2, 0.8}, {-1, 1},
		{0, 1},
		{1, 1}, {2, 0.8}, {3, 0.4}, {4, 0.2},
	}

	// DefaultTaps is the narrow second-pass window, used when no table is given.
	DefaultTaps = []Tap{
		{-2, 0.4}, {-1, 0.6},
		{0, 1},
		{1, 0.6}, {2, 0.4},
	}
)

// WeightedAverage returns the weighted mean of values around center.
// Taps that fall outside values are dropped from both sums, so edge
// windows are renormalized over the taps that remain. A nil table selects
// DefaultTaps. It returns 0 when no weight is in range.
func WeightedAverage(values []float64, center int, taps []Tap) float64 {
	if taps == nil {
		taps = DefaultTaps
	}
	var sum, weights float64
	for _, tp := range taps {
		i := center + tp.Offset
		if i < 0 || i >= len(values) {
			continue
		}
		sum += tp.Weight * values[i]
		weights += tp.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// smooth runs both passes over the whole store: PowerTaps over the
// loss-corrected series, then DefaultTaps over the first-pass output.
func smooth(records []Record) {
	n := len(records)
	power := make([]float64, n)
	torque := make([]float64, n)

	for i := range records {
		power[i] = records[i].PowerKmWithLoss
		torque[i] = records[i].TorqueWithLoss
	}
	for i := range records {
		records[i].PowerKmAvg = WeightedAverage(power, i, PowerTaps)
		records[i].TorqueAvg = WeightedAverage(torque, i, PowerTaps)
	}

	for i := range records {
		power[i] = records[i].PowerKmAvg
		torque[i] = records[i].TorqueAvg
	}
	for i := range records {
		records[i].PowerKmAvg2 = WeightedAverage(power, i, nil)
		records[i].TorqueAvg2 = WeightedAverage(torque, i, nil)
	}
}
