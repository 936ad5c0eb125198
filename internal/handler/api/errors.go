package api

import (
	"context"
	"errors"

	"TokenScope/internal/domain/models"
	xhttp "TokenScope/pkg/http"
)

// toAppError maps domain failures onto transport errors.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr *xhttp.AppError
		short  *models.InsufficientDataError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &short):
		return xhttp.UnprocessableError("not enough candles for this analysis").
			WithParam("have", short.Have).
			WithParam("need", short.Need).
			WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("not enough candles for this analysis").WithError(err)
	case errors.Is(err, models.ErrInvalidCandle):
		return xhttp.UnprocessableError("series violates candle invariants").WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.NotFoundError("no market data for token").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("analysis timed out").WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
