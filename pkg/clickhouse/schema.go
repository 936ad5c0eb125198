package clickhouse

// Schema returns the idempotent DDL for the candle and verdict tables.
func Schema(database string) []string {
	if database == "" {
		database = "tokenscope"
	}
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		`CREATE TABLE IF NOT EXISTS ` + database + `.candles (
			token_id  String,
			timeframe LowCardinality(String),
			ts        DateTime64(3, 'UTC'),
			open      Float64,
			high      Float64,
			low       Float64,
			close     Float64,
			volume    Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (token_id, timeframe, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.verdicts (
			id             UUID,
			token_id       String,
			timeframe      LowCardinality(String),
			generated_at   DateTime64(3, 'UTC'),
			data_source    LowCardinality(String),
			overall_signal LowCardinality(String),
			overall_score  Float64,
			confidence     Float64,
			action         LowCardinality(String),
			position_size  LowCardinality(String),
			regime         LowCardinality(String),
			payload        String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(generated_at)
		ORDER BY (token_id, generated_at)`,
	}
}
