package models

// NumFeatures is the fixed length of a FeatureVector.
const NumFeatures = 5

// FeatureNames lists the vector components in their canonical order.
var FeatureNames = [NumFeatures]string{"param1", "param2", "param3", "temperature", "humidity"}

// Defaults applied to measurements missing from an otherwise valid record.
const (
	DefaultTemperature = 20.0
	DefaultHumidity    = 60.0
)

// FeatureVector is the canonical numeric representation of one measurement event.
type FeatureVector struct {
	Param1      float64 `json:"param1"`
	Param2      float64 `json:"param2"`
	Param3      float64 `json:"param3"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Array returns the components in FeatureNames order.
func (f FeatureVector) Array() [NumFeatures]float64 {
	return [NumFeatures]float64{f.Param1, f.Param2, f.Param3, f.Temperature, f.Humidity}
}

// FeatureVectorFromArray is the inverse of FeatureVector.Array.
func FeatureVectorFromArray(a [NumFeatures]float64) FeatureVector {
	return FeatureVector{Param1: a[0], Param2: a[1], Param3: a[2], Temperature: a[3], Humidity: a[4]}
}

// FeatureInput is a feature vector as received from callers, where any field may be absent.
type FeatureInput struct {
	Param1      *float64 `json:"param1,omitempty"`
	Param2      *float64 `json:"param2,omitempty"`
	Param3      *float64 `json:"param3,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// Vector fills absent fields with their defaults.
func (in FeatureInput) Vector() FeatureVector {
	return FeatureVector{
		Param1:      valueOr(in.Param1, 0),
		Param2:      valueOr(in.Param2, 0),
		Param3:      valueOr(in.Param3, 0),
		Temperature: valueOr(in.Temperature, DefaultTemperature),
		Humidity:    valueOr(in.Humidity, DefaultHumidity),
	}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
