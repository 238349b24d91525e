package config

const (
	defaultDataDir           = "~/.local/share/dossier/data"
	defaultLogDir            = "~/.local/share/dossier/logs"
	defaultLockDir           = "~/.local/share/dossier/locks"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/dossier-archive/dossier"
	defaultLLMTitle          = "Dossier Match Classifier"
	defaultLLMTimeoutSeconds = 60
	defaultMatchingBatchSize = 40
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			LockDir: defaultLockDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Matching: Matching{
			BatchSize: defaultMatchingBatchSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
