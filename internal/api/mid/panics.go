package mid

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/ahrav/jobwatch/internal/api/errs"
	"github.com/ahrav/jobwatch/pkg/web"
)

// Panics recovers from panics and converts the panic to an error so it is
// handled in Errors.
func Panics() web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) (resp web.Encoder) {
			defer func() {
				if rec := recover(); rec != nil {
					resp = errs.Newf(errs.Internal, "PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				}
			}()

			return next(ctx, r)
		}

		return h
	}

	return m
}
