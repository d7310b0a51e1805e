package state

import "math"

// Sigmoid is the standard logistic function, used by the occupancy
// derivation's probability model.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Logit is Sigmoid's inverse.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// ExpDecaySince returns exp(-elapsedSeconds/tauSeconds), the exponential
// age-decay weight for a sample elapsedSeconds old against time constant
// tauSeconds.
func ExpDecaySince(elapsedSeconds, tauSeconds float64) float64 {
	return math.Exp(-elapsedSeconds / tauSeconds)
}

// weightedPoint is one (value, age-in-seconds) pair fed to the age-weighted
// aggregators below.
type weightedPoint struct {
	value   float64
	ageSecs float64
}

// ageWeightedSumAndCount computes sum(value * exp(-age/tau)) and
// sum(exp(-age/tau)) in one pass, the shared core of weightedAgedSum and
// weightedAgedMean.
func ageWeightedSumAndCount(points []weightedPoint, tauSeconds float64) (sum, weight float64) {
	for _, p := range points {
		w := ExpDecaySince(p.ageSecs, tauSeconds)
		sum += p.value * w
		weight += w
	}
	return sum, weight
}

// weightedAgedSum is the ∫ value · exp(-age/τ) aggregate the occupancy
// model's "aged-sum" term uses directly (it is not normalized by total
// weight — an empty or all-false window simply contributes 0).
func weightedAgedSum(points []weightedPoint, tauSeconds float64) float64 {
	sum, _ := ageWeightedSumAndCount(points, tauSeconds)
	return sum
}

// weightedAgedMean normalizes weightedAgedSum by total weight; returns 0,
// false on an empty series (no data to average).
func weightedAgedMean(points []weightedPoint, tauSeconds float64) (float64, bool) {
	sum, weight := ageWeightedSumAndCount(points, tauSeconds)
	if weight == 0 {
		return 0, false
	}
	return sum / weight, true
}

// average is the unweighted arithmetic mean; returns 0, false if empty.
func average(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// magnusSaturationVaporPressure returns saturation vapor pressure in hPa for
// a temperature in Celsius, using the Magnus formula with the standard
// coefficients (7.5, 237.3) for t >= 0 and the ice-branch coefficients
// (7.6, 240.7) for t < 0.
func magnusSaturationVaporPressure(tempC float64) float64 {
	a, b := 7.5, 237.3
	if tempC < 0 {
		a, b = 7.6, 240.7
	}
	return 6.1078 * math.Pow(10, (a*tempC)/(b+tempC))
}

// Dewpoint computes the dewpoint in Celsius from temperature (Celsius) and
// relative humidity (0-100), via the Magnus formula, branching coefficients
// at 0°C.
func Dewpoint(tempC, relHumidityPct float64) float64 {
	a, b := 7.5, 237.3
	if tempC < 0 {
		a, b = 7.6, 240.7
	}
	saturation := magnusSaturationVaporPressure(tempC)
	vapor := saturation * (relHumidityPct / 100)
	log10Ratio := math.Log10(vapor / 6.1078)
	return b * log10Ratio / (a - log10Ratio)
}

// AbsoluteHumidity computes absolute humidity in g/m^3 from temperature
// (Celsius) and relative humidity (0-100) via the standard vapor-pressure
// formula.
func AbsoluteHumidity(tempC, relHumidityPct float64) float64 {
	saturation := magnusSaturationVaporPressure(tempC)
	vaporPa := saturation * (relHumidityPct / 100) * 100 // hPa -> Pa
	tempK := tempC + 273.15
	const specificGasConstantWaterVapor = 461.5 // J/(kg*K)
	return vaporPa / (specificGasConstantWaterVapor * tempK) * 1000 // kg/m3 -> g/m3
}
