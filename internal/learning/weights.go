package learning

import "github.com/rewired-gh/venuepulse/internal/models"

const (
	// learnedWeightTotal is shared between sound, light and temperature.
	learnedWeightTotal = 0.9
	residualWeight     = 0.10

	soundWeightFloor       = 0.15
	lightWeightFloor       = 0.10
	temperatureWeightFloor = 0.05
)

// DefaultWeights is the static importance vector used until a window shows
// measurable improvement for any factor.
func DefaultWeights() models.Weights {
	return models.Weights{Sound: 0.45, Light: 0.30, Temperature: 0.15, Residual: residualWeight}
}

// CalculateWeights redistributes factor importance in proportion to each
// factor's learned improvement. Every factor keeps a floor weight: a factor
// without learned signal may still matter, there is just no evidence yet.
// Sound, light and temperature always sum to 0.9 and each stays at or above
// its floor after that normalization: factors whose proportional share
// falls under the floor are pinned to it and the rest of the 0.9 is shared
// among the others, repeating until no share is under its floor.
func CalculateWeights(sound, light, temperature *models.LearnedRange) models.Weights {
	imp := func(r *models.LearnedRange) float64 {
		if r == nil || r.ImprovementPct <= 0 {
			return 0
		}
		return r.ImprovementPct
	}

	improvements := [3]float64{imp(sound), imp(light), imp(temperature)}
	floors := [3]float64{soundWeightFloor, lightWeightFloor, temperatureWeightFloor}
	if improvements[0]+improvements[1]+improvements[2] <= 0 {
		return DefaultWeights()
	}

	var (
		weights [3]float64
		pinned  [3]bool
	)
	// The floors sum to well under 0.9, so the factor with the largest
	// improvement is never pinned; every pass either pins another factor or
	// settles.
	for {
		budget, total := learnedWeightTotal, 0.0
		for i := range weights {
			if pinned[i] {
				budget -= floors[i]
			} else {
				total += improvements[i]
			}
		}
		settled := true
		for i := range weights {
			if pinned[i] {
				weights[i] = floors[i]
				continue
			}
			weights[i] = budget * improvements[i] / total
			if weights[i] < floors[i] {
				pinned[i] = true
				settled = false
			}
		}
		if settled {
			break
		}
	}

	return models.Weights{
		Sound:       weights[0],
		Light:       weights[1],
		Temperature: weights[2],
		Residual:    residualWeight,
	}
}
