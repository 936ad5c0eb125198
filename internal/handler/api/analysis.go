package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TokenScope/internal/domain/models"
	domrepo "TokenScope/internal/domain/repository"
	"TokenScope/internal/service/ratelimit"
	"TokenScope/internal/service/stream"
	"TokenScope/internal/usecase"
	xhttp "TokenScope/pkg/http"
	xlogger "TokenScope/pkg/logger"
	"TokenScope/pkg/util"
)

// AnalysisHandler serves the token analysis API.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	analysis *usecase.AnalysisUseCase
	candles  *usecase.CandlesUseCase
	verdicts domrepo.VerdictStorage
	hub      *stream.Hub
	limiter  *ratelimit.Limiter
}

// NewAnalysisHandler wires the handler. verdicts, hub and limiter may be nil;
// the routes they back then report 503 or are skipped.
func NewAnalysisHandler(
	logger *xlogger.Logger,
	analysis *usecase.AnalysisUseCase,
	candles *usecase.CandlesUseCase,
	verdicts domrepo.VerdictStorage,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
) *AnalysisHandler {
	return &AnalysisHandler{
		logger:   logger,
		analysis: analysis,
		candles:  candles,
		verdicts: verdicts,
		hub:      hub,
		limiter:  limiter,
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(h.limiter.Middleware())
	}
	g.GET("/analysis", h.Analysis)
	g.GET("/analysis/quick", h.Quick)
	g.GET("/regime", h.Regime)
	g.GET("/indicators", h.Indicators)
	g.GET("/candles", h.Candles)
	g.GET("/verdicts", h.Verdicts)
	g.GET("/stream", h.Stream)
}

func (h *AnalysisHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analysis.Analyze(c.Request().Context(), usecase.AnalyzeParams{
		TokenID:    req.TokenID,
		Timeframe:  domrepo.NormalizeTimeframe(req.TF),
		Limit:      req.N,
		Timeframes: domrepo.ParseTimeframes(req.Timeframes),
	})
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Quick(c echo.Context) error {
	req := &models.QuickAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analysis.Quick(c.Request().Context(), usecase.AnalyzeParams{
		TokenID:   req.TokenID,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		return h.fail(c, "quick", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analysis.DetectRegime(c.Request().Context(), usecase.AnalyzeParams{
		TokenID:   req.TokenID,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		return h.fail(c, "regime", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analysis.Indicators(c.Request().Context(), usecase.AnalyzeParams{
		TokenID:   req.TokenID,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		return h.fail(c, "indicators", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		TokenID:   req.TokenID,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		return h.fail(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Verdicts lists stored verdicts for a token, newest first.
func (h *AnalysisHandler) Verdicts(c echo.Context) error {
	if h.verdicts == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("verdict storage disabled"))
	}
	req := &models.VerdictsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to := util.ParseTimeDefault(req.To, time.Now().UTC())
	from := util.ParseTimeDefault(req.From, to.Add(-time.Duration(req.Hours)*time.Hour))
	if !from.Before(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be before to"))
	}
	res, err := h.verdicts.Query(c.Request().Context(), req.TokenID, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "verdicts", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Stream upgrades to a websocket and pushes verdicts as they complete.
// An optional token query parameter filters the stream.
func (h *AnalysisHandler) Stream(c echo.Context) error {
	if h.hub == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("stream disabled"))
	}
	token := c.QueryParam("token")
	if err := h.hub.ServeWS(c.Response(), c.Request(), token); err != nil {
		// the upgrader already wrote the error response
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
	}
	return nil
}

func (h *AnalysisHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" request rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
