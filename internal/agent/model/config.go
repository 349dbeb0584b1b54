package model

// ================ Config ================

type LLMConfig struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai"` // openai, gemini
	Model       string  `envconfig:"LLM_MODEL" default:"gpt-4o"`
	BaseURL     string  `envconfig:"LLM_BASE_URL"`
	APIKey      string  `envconfig:"LLM_API_KEY"`
	Temperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.1"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"2000"`
	TimeoutSec  int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"30"`
}

type ExecutorConfig struct {
	RowLimit            int    `envconfig:"EXECUTOR_ROW_LIMIT" default:"1000"`
	StatementTimeoutSec int    `envconfig:"EXECUTOR_STATEMENT_TIMEOUT_SECONDS" default:"30"`
	Dialect             string `envconfig:"EXECUTOR_DIALECT" default:"postgres"`
}

type ExportConfig struct {
	Dir      string `envconfig:"EXPORT_DIR" default:"exports"`
	MaxFiles int    `envconfig:"EXPORT_MAX_FILES" default:"50"`
}

type VizConfig struct {
	Dir                  string  `envconfig:"VIZ_DIR" default:"visualizations"`
	NumericThreshold     float64 `envconfig:"VIZ_NUMERIC_THRESHOLD" default:"0.8"`
	PreferenceConfidence float64 `envconfig:"VIZ_PREFERENCE_CONFIDENCE" default:"0.7"`
	PieCategoryCap       int     `envconfig:"VIZ_PIE_CATEGORY_CAP" default:"8"`
	SampleSize           int     `envconfig:"VIZ_SAMPLE_SIZE" default:"20"`
}

type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"5"`
}

type CatalogConfig struct {
	// Path to a JSON catalog file. Empty means the embedded default catalog.
	Path string `envconfig:"CATALOG_PATH"`
}
