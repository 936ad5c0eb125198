package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"TokenScope/internal/di"
	"TokenScope/internal/domain/models"
	drepo "TokenScope/internal/domain/repository"
	"TokenScope/internal/services/indicators"
	"TokenScope/internal/services/patterns"
	"TokenScope/internal/services/predictor"
	"TokenScope/internal/usecase"
	"TokenScope/pkg/config"
	"TokenScope/pkg/logger"
	"TokenScope/pkg/metrics"
)

var (
	analyzeFile      string
	analyzeMode      string
	analyzeTimeframe string
	analyzeToken     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a candle series read from a JSON file",
	Long: `Run one analysis over candles read from a file instead of the store.
The file holds either a JSON array of candles or an object
{"tokenId": "...", "candles": [...]}. The result is printed as JSON.

Examples:
  tokenscope analyze --file candles.json
  tokenscope analyze --file candles.json --mode quick --timeframe 4h`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "candles JSON file (required)")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", usecase.ModeFull, "full|quick|regime|indicators")
	analyzeCmd.Flags().StringVar(&analyzeTimeframe, "timeframe", "1h", "timeframe of the candles")
	analyzeCmd.Flags().StringVar(&analyzeToken, "token", "", "token id (overrides the file)")
	_ = analyzeCmd.MarkFlagRequired("file")
}

type candleFile struct {
	TokenID string          `json:"tokenId"`
	Candles []models.Candle `json:"candles"`
}

func readCandles(path string) (*candleFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	var cf candleFile
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("[")) {
		err = json.Unmarshal(b, &cf.Candles)
	} else {
		err = json.Unmarshal(b, &cf)
	}
	if err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	if len(cf.Candles) == 0 {
		return nil, fmt.Errorf("%s holds no candles", path)
	}
	return &cf, nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cf, err := readCandles(analyzeFile)
	if err != nil {
		return err
	}
	tokenID := analyzeToken
	if tokenID == "" {
		tokenID = cf.TokenID
	}
	if tokenID == "" {
		tokenID = "cli"
	}
	tf := drepo.Timeframe(analyzeTimeframe)
	if !drepo.IsValidTimeframe(tf) {
		return fmt.Errorf("unsupported timeframe %q", analyzeTimeframe)
	}

	cfg, err := config.Default()
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			cfg, err = config.Load(configPath)
		}
	}
	if err != nil {
		return err
	}
	log, err := logger.New(&logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	// no series provider: the multi-timeframe layer is skipped
	ac := di.AnalysisConfig(cfg)
	ac.Source = models.SourceProvider
	uc := usecase.NewAnalysisUseCase(ac, nil, nil,
		indicators.NewEngine(), predictor.NewOLS(), patterns.NewDetector(),
		nil, metrics.New(prometheus.NewRegistry()), log)

	ctx, cancel := context.WithTimeout(context.Background(), ac.Timeout+time.Second)
	defer cancel()

	p := usecase.AnalyzeParams{TokenID: tokenID, Timeframe: tf, Limit: len(cf.Candles)}
	var out interface{}
	switch analyzeMode {
	case usecase.ModeFull:
		out, err = uc.AnalyzeSeries(ctx, p, cf.Candles, models.SourceProvider)
	case usecase.ModeQuick:
		out, err = uc.QuickSeries(p, cf.Candles, models.SourceProvider, nil)
	case "regime":
		out, err = uc.RegimeSeries(p, cf.Candles, models.SourceProvider)
	case "indicators":
		out, err = uc.IndicatorsSeries(p, cf.Candles, models.SourceProvider)
	default:
		return fmt.Errorf("unknown mode %q", analyzeMode)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
