package mid

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/api/errs"
	"github.com/ahrav/jobwatch/pkg/common/logger"
	"github.com/ahrav/jobwatch/pkg/web"
)

// Errors handles errors coming out of the call chain. Internal errors and
// anything that is not an *errs.Error reach the client without detail.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err, isErr := resp.(error)
			if !isErr {
				return resp
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			var appErr *errs.Error
			if !errors.As(err, &appErr) {
				appErr = errs.Newf(errs.Internal, "internal server error")
			}

			log.Error(ctx, "handled error during request",
				"err", err,
				"code", appErr.Code.String(),
				"method", r.Method,
				"path", r.URL.Path,
			)

			if appErr.Code == errs.Internal {
				return errs.Newf(errs.Internal, "internal server error")
			}
			return appErr
		}

		return h
	}

	return m
}
