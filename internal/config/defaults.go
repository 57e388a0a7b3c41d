package config

const (
	defaultServerBind         = "0.0.0.0"
	defaultServerPort         = 8080
	defaultDatabaseDriver     = "sqlite"
	defaultDatabaseDSN        = "sdx-engine.db"
	defaultObjectStoreBucket  = "asr-reports"
	defaultEngineCacheSize    = 4096
	defaultEngineGranularity  = "char"
	defaultEngineNormalize    = "none"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultConfigFileName     = "sdx-engine.toml"
	defaultSessionTTLHours    = 24
	defaultMaxBatchUtterances = 100000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind: defaultServerBind,
			Port: defaultServerPort,
		},
		Auth: Auth{
			SessionTTLHours: defaultSessionTTLHours,
		},
		Database: Database{
			Driver: defaultDatabaseDriver,
			DSN:    defaultDatabaseDSN,
		},
		ObjectStore: ObjectStore{
			Bucket: defaultObjectStoreBucket,
		},
		Engine: Engine{
			CacheSize:          defaultEngineCacheSize,
			CharGranularity:    defaultEngineGranularity,
			Normalization:      defaultEngineNormalize,
			MaxBatchUtterances: defaultMaxBatchUtterances,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
