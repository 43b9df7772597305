package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TIDEFEED_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr("TIDEFEED_DATA_DIR", &cfg.DataDir)
	setStr("TIDEFEED_LOG_LEVEL", &cfg.Log.Level)
	setStr("TIDEFEED_LOG_FORMAT", &cfg.Log.Format)

	setStr("TIDEFEED_STORAGE_BACKEND", &cfg.Storage.Backend)
	setStr("TIDEFEED_AZURE_ACCOUNT_NAME", &cfg.Storage.Azure.AccountName)
	setStr("TIDEFEED_AZURE_ACCOUNT_KEY", &cfg.Storage.Azure.AccountKey)
	setStr("TIDEFEED_AZURE_CONTAINER", &cfg.Storage.Azure.Container)
	setStr("TIDEFEED_AZURE_ENDPOINT", &cfg.Storage.Azure.Endpoint)
	setStr("TIDEFEED_FS_ROOT", &cfg.Storage.FS.Root)

	setStr("TIDEFEED_FEED_ID", &cfg.Feed.ID)
	setStr("TIDEFEED_FEED_START_TIME", &cfg.Feed.StartTime)
	setInt("TIDEFEED_FEED_POLL_INTERVAL_MS", &cfg.Feed.PollIntervalMs)
	setInt("TIDEFEED_FEED_SHARD_CONCURRENCY", &cfg.Feed.ShardConcurrency)
	setInt("TIDEFEED_FEED_BATCH_MAX_EVENTS", &cfg.Feed.BatchMaxEvents)
	setInt("TIDEFEED_FEED_BATCH_MAX_WAIT_MS", &cfg.Feed.BatchMaxWaitMs)
	setStr("TIDEFEED_FEED_CONTAINER", &cfg.Feed.Container)
}
