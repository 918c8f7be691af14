// Package predict wraps the crop price/yield model behind an opaque
// interface: inputs in, scaled vector, two scalar predictions out. The auth
// subsystem treats it purely as a collaborator.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Features are the raw model inputs as submitted by the client.
type Features struct {
	Temperature float64 `json:"temperature"`
	Rainfall    float64 `json:"rainfall"`
	Yield       float64 `json:"yield"`
}

// Prediction is the pair of model outputs.
type Prediction struct {
	Price float64 `json:"predicted_price"`
	Yield float64 `json:"predicted_yield"`
}

// Service is the opaque prediction contract.
type Service interface {
	Predict(ctx context.Context, f Features) (Prediction, error)
}

// Linear standardizes the three features and applies two linear models. It
// stands in for the exported regression models of the training pipeline; the
// coefficients come from host configuration.
type Linear struct {
	Mean  [3]float64
	Scale [3]float64

	PriceCoef      [3]float64
	PriceIntercept float64
	YieldCoef      [3]float64
	YieldIntercept float64
}

func (m *Linear) Predict(_ context.Context, f Features) (Prediction, error) {
	raw := [3]float64{f.Temperature, f.Rainfall, f.Yield}
	var scaled [3]float64
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, fmt.Errorf("feature %d is not a finite number", i)
		}
		scale := m.Scale[i]
		if scale == 0 {
			return Prediction{}, errors.New("model scale contains a zero")
		}
		scaled[i] = (v - m.Mean[i]) / scale
	}

	var price, yield float64
	for i, v := range scaled {
		price += m.PriceCoef[i] * v
		yield += m.YieldCoef[i] * v
	}
	return Prediction{
		Price: price + m.PriceIntercept,
		Yield: yield + m.YieldIntercept,
	}, nil
}
