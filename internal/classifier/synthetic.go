package classifier

import (
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// SyntheticSampleCount is the size of the bootstrap training set.
const SyntheticSampleCount = 500

// syntheticRanges bounds each feature of generated samples, in FeatureNames order.
var syntheticRanges = [models.NumFeatures][2]float64{
	{0, 20},  // param1
	{0, 30},  // param2
	{0, 5},   // param3
	{10, 30}, // temperature
	{40, 80}, // humidity
}

// SyntheticSamples draws n uniformly distributed feature vectors and labels them with
// SyntheticLabel. Each feature column is drawn in full before the next one.
func SyntheticSamples(n int, seed uint64) []Sample {
	rng := newRand(seed)
	cols := make([][]float64, models.NumFeatures)
	for j, r := range syntheticRanges {
		cols[j] = make([]float64, n)
		for i := range cols[j] {
			cols[j][i] = r[0] + rng.Float64()*(r[1]-r[0])
		}
	}

	samples := make([]Sample, n)
	for i := range samples {
		var x vector
		for j := range x {
			x[j] = cols[j][i]
		}
		fv := models.FeatureVectorFromArray(x)
		samples[i] = Sample{Features: fv, Label: SyntheticLabel(fv)}
	}
	return samples
}

// SyntheticLabel applies the weighted linear risk score used to label generated data.
func SyntheticLabel(fv models.FeatureVector) models.RiskLabel {
	score := 0.3*fv.Param1 + 0.2*fv.Param2 + 0.5*fv.Param3 +
		0.1*(fv.Temperature-models.DefaultTemperature) + 0.05*(fv.Humidity-models.DefaultHumidity)
	switch {
	case score < 5:
		return models.RiskNormal
	case score < 12:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
