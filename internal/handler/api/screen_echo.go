package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/internal/usecase"
	xhttp "QuietSpike/pkg/http"
	xlogger "QuietSpike/pkg/logger"
)

// ScreenEchoHandler serves the screening endpoints.
type ScreenEchoHandler struct {
	logger *xlogger.Logger
	screen *usecase.ScreenUseCase
}

func NewScreenEchoHandler(logger *xlogger.Logger, screen *usecase.ScreenUseCase) *ScreenEchoHandler {
	return &ScreenEchoHandler{logger: logger, screen: screen}
}

func (h *ScreenEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/spike", h.Spike)
	g.GET("/scan", h.Scan)
	g.POST("/screen", h.Screen)
	g.GET("/bars", h.Bars)
}

// Spike runs the quiet-period spike strategy on one symbol.
func (h *ScreenEchoHandler) Spike(c echo.Context) error {
	req := &models.SpikeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg := analytics.DefaultConfig()
	cfg.Strategy = models.StrategyQuietSpike
	cfg.Spike = analytics.SpikeParams{
		QuietDays:            req.QuietDays,
		RecentDays:           req.RecentDays,
		VolumeThreshold:      req.VolumeThreshold,
		PriceChangeThreshold: req.PriceChangeThreshold,
	}

	sig, err := h.screen.EvaluateSymbol(c.Request().Context(), req.Symbol, usecase.ScreenParams{
		Start:    req.Start,
		End:      req.End,
		Detector: &cfg,
	})
	if err != nil {
		return h.fail(c, "spike", req.Symbol, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, sig)
}

// Scan runs the rolling strategy on one symbol.
func (h *ScreenEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg := analytics.DefaultConfig()
	cfg.Strategy = models.StrategyRolling
	cfg.Rolling = analytics.RollingParams{
		LookbackDays:        req.LookbackDays,
		RecentDays:          req.RecentDays,
		VolumeThreshold:     req.VolumeThreshold,
		VolatilityThreshold: req.VolatilityThreshold,
	}

	sig, err := h.screen.EvaluateSymbol(c.Request().Context(), req.Symbol, usecase.ScreenParams{
		Start:    req.Start,
		End:      req.End,
		Detector: &cfg,
	})
	if err != nil {
		return h.fail(c, "scan", req.Symbol, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, sig)
}

// Screen runs the pipeline over the configured universe or the given symbols.
func (h *ScreenEchoHandler) Screen(c echo.Context) error {
	req := &models.ScreenRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.screen.Screen(c.Request().Context(), usecase.ScreenParams{
		Codes:    req.Symbols,
		Start:    req.Start,
		End:      req.End,
		Strategy: models.Strategy(req.Strategy),
		Persist:  req.Persist,
	})
	if err != nil {
		return h.fail(c, "screen", "", err)
	}
	return xhttp.SuccessResponse(c, models.NewScreenResponse(report))
}

// Bars returns the validated series of one symbol.
func (h *ScreenEchoHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	series, err := h.screen.Series(c.Request().Context(), req.Symbol, req.Start, req.End)
	if err != nil {
		return h.fail(c, "bars", req.Symbol, err)
	}
	return xhttp.ListResponse(c, series.Bars, int64(series.Len()))
}

func (h *ScreenEchoHandler) fail(c echo.Context, op, symbol string, err error) error {
	appErr := toAppError(err)
	fields := []xlogger.Field{xlogger.String("op", op), xlogger.String("kind", models.ErrorKind(err)), xlogger.Error(err)}
	if symbol != "" {
		fields = append(fields, xlogger.String("symbol", symbol))
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("screen request failed", fields...)
	} else {
		h.logger.Warn("screen request rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrConfiguration):
		appErr = xhttp.BadRequestErrorf("%v", err)
	case errors.Is(err, models.ErrSymbolNotFound):
		appErr = xhttp.NotFoundErrorf("%v", err)
	case errors.Is(err, models.ErrInsufficientHistory):
		appErr = xhttp.UnprocessableErrorf("ERR_INSUFFICIENT_HISTORY", "%v", err)
	case errors.Is(err, models.ErrInvalidBar):
		appErr = xhttp.UnprocessableErrorf("ERR_INVALID_BAR", "%v", err)
	case errors.Is(err, models.ErrUpstreamUnavailable):
		appErr = xhttp.BadGatewayErrorf("%v", err)
	default:
		appErr = xhttp.InternalErrorf("internal error")
	}
	return appErr.WithError(err)
}
