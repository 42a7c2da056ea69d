package common

const (
	RedisStreamSignalPublished = "engine.signal.published"
	RedisStreamMetricsUpdated  = "engine.metrics.updated"
)
