package settings

// DB config keys and defaults for runtime settings.
const (
	// ErrorLogRetentionDaysKey controls how long diagnostic entries are kept.
	ErrorLogRetentionDaysKey = "ERROR_LOG_RETENTION_DAYS"
	// DefaultErrorLogRetentionDays is the fallback retention; zero keeps entries forever.
	DefaultErrorLogRetentionDays = 90
	// DataStoreRequestTimeoutSecondsKey overrides the per-call data-store API timeout.
	DataStoreRequestTimeoutSecondsKey = "DATASTORE_REQUEST_TIMEOUT_SECONDS"
)

// KnownKeys lists the keys accepted by the runtime settings API.
var KnownKeys = []string{
	ErrorLogRetentionDaysKey,
	DataStoreRequestTimeoutSecondsKey,
}

// IsKnownKey reports whether key is an accepted runtime setting.
func IsKnownKey(key string) bool {
	for _, known := range KnownKeys {
		if known == key {
			return true
		}
	}
	return false
}
