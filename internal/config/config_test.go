package config

import "testing"

func validConfig() Config {
	return Config{
		EntityThreshold:      2,
		CriticalThreshold:    4,
		HighThreshold:        3,
		MediumThreshold:      2,
		MaxAdvisories:        1000,
		MaxGraphAgeSeconds:   3600,
		PruneIntervalSeconds: 300,
	}
}

func TestValidate_RejectsMissingAPIKeyInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Production = true
	cfg.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for missing API_KEY in production mode")
	}
}

func TestValidate_RejectsNonMonotonicThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.HighThreshold = 5 // now HIGH > CRITICAL, invalid
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for non-monotonic thresholds")
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate cleanly, got %v", err)
	}
}
