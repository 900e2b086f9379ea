package config

import (
	"time"

	"github.com/spf13/viper"
)

// Settings holds every tunable of the extraction stack, resolved from Viper
// with sensible defaults.
type Settings struct {
	FeedbackDB      string
	TemplateDB      string
	ModelPath       string
	MinConfidence   float64
	AssistThreshold float64
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxSize    int
}

// Load resolves settings from Viper. Missing keys fall back to defaults under
// $HOME/.local/share/fatura.
func Load() Settings {
	s := Settings{
		FeedbackDB:      viper.GetString("database.feedback_path"),
		TemplateDB:      viper.GetString("database.template_path"),
		ModelPath:       viper.GetString("assistant.model_path"),
		MinConfidence:   viper.GetFloat64("detection.min_confidence"),
		AssistThreshold: viper.GetFloat64("assistant.threshold"),
		CacheEnabled:    true,
		CacheTTL:        viper.GetDuration("cache.ttl"),
		CacheMaxSize:    viper.GetInt("cache.max_size"),
	}

	if viper.IsSet("cache.enabled") {
		s.CacheEnabled = viper.GetBool("cache.enabled")
	}

	if s.FeedbackDB == "" {
		s.FeedbackDB = "$HOME/.local/share/fatura/feedback.db"
	}
	if s.TemplateDB == "" {
		s.TemplateDB = "$HOME/.local/share/fatura/templates.db"
	}
	if s.ModelPath == "" {
		s.ModelPath = "$HOME/.local/share/fatura/model.json"
	}

	s.FeedbackDB = ExpandPath(s.FeedbackDB)
	s.TemplateDB = ExpandPath(s.TemplateDB)
	s.ModelPath = ExpandPath(s.ModelPath)

	return s
}
