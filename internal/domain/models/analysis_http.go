package models

// Requests for analysis endpoints and queue messages. Defined in domain for consistency and reuse.

type AnalysisRequest struct {
	TokenID    string `query:"token" json:"token_id" validate:"required"`
	TF         string `query:"tf" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N          int    `query:"n" json:"limit" default:"200" validate:"gte=50,lte=5000"`
	Timeframes string `query:"timeframes" json:"timeframes" default:"5m,15m,1h,4h,1d"`
}

type QuickAnalysisRequest struct {
	TokenID string `query:"token" json:"token_id" validate:"required"`
	TF      string `query:"tf" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N       int    `query:"n" json:"limit" default:"100" validate:"gte=50,lte=5000"`
}

type RegimeRequest struct {
	TokenID string `query:"token" json:"token_id" validate:"required"`
	TF      string `query:"tf" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N       int    `query:"n" json:"limit" default:"300" validate:"gte=2,lte=5000"`
}

type IndicatorsRequest struct {
	TokenID string `query:"token" json:"token_id" validate:"required"`
	TF      string `query:"tf" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N       int    `query:"n" json:"limit" default:"200" validate:"gte=50,lte=5000"`
}

type CandlesRequest struct {
	TokenID string `query:"token" json:"token_id" validate:"required"`
	TF      string `query:"tf" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N       int    `query:"n" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

// AnalysisJob is the queue message asking for an analysis run.
type AnalysisJob struct {
	TokenID   string `json:"token_id" validate:"required"`
	Timeframe string `json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Limit     int    `json:"limit" default:"200" validate:"gte=50,lte=5000"`
	Mode      string `json:"mode" default:"full" validate:"oneof=full quick"`
}

type VerdictsRequest struct {
	TokenID string `query:"token" json:"token_id" validate:"required"`
	Hours   int    `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
	Limit   int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	// From and To accept RFC3339 or unix seconds/millis and override Hours.
	From    string `query:"from" json:"from,omitempty"`
	To      string `query:"to" json:"to,omitempty"`
}
