package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider, cache
// backend and catalog storage changes all require a restart.
type ConfigDiff struct {
	RetrievalChanged bool // similarity_threshold, top_k or max_context_tokens changed
	NewRetrieval     RetrievalConfig

	GeneratorChanged bool // creativity, max_response_tokens or timeout_seconds changed
	NewGenerator     GeneratorConfig

	CacheTTLChanged bool
	NewCacheTTL     int // seconds

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Changed reports whether the diff contains any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.RetrievalChanged || d.GeneratorChanged || d.CacheTTLChanged || d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Retrieval != new.Retrieval {
		d.RetrievalChanged = true
		d.NewRetrieval = new.Retrieval
	}

	if old.Generator != new.Generator {
		d.GeneratorChanged = true
		d.NewGenerator = new.Generator
	}

	if old.Cache.TTLSeconds != new.Cache.TTLSeconds {
		d.CacheTTLChanged = true
		d.NewCacheTTL = new.Cache.TTLSeconds
	}

	return d
}
