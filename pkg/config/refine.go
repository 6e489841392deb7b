package config

import "time"

// RefineConfig tunes user-directed refinement.
type RefineConfig struct {
	Debounce    time.Duration
	Padding     float64
	Confidence  float64
	MinArea     float64
	Concurrency int
}

func loadRefineConfig() RefineConfig {
	return RefineConfig{
		Debounce:    getEnvDuration("REFINE_DEBOUNCE", 1500*time.Millisecond),
		Padding:     getEnvFloat("REFINE_PADDING", 0.10),
		Confidence:  getEnvFloat("REFINE_CONFIDENCE", 0.99),
		MinArea:     getEnvFloat("REFINE_MIN_AREA", 4),
		Concurrency: getEnvInt("REFINE_CONCURRENCY", 4),
	}
}
