// Package mux provides support to bind domain level routes
// to the application mux.
package mux

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/api/mid"
	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/pkg/common/logger"
	"github.com/ahrav/jobwatch/pkg/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build   string
	Log     *logger.Logger
	Tracer  trace.Tracer
	Monitor Monitor
	Status  background.StatusService
}

// Monitor is the part of the job monitor the API drives.
type Monitor interface {
	Add(ctx context.Context, item *background.TrackedItem) bool
	AddGroup(
		ctx context.Context,
		groupID, title string,
		uiType background.UIType,
		watchable bool,
		jobIDs []string,
	) (*background.TrackedItem, error)
	Cancel(ctx context.Context, id string) error
	Cleanup(ctx context.Context, id string) error
	Dismiss(ctx context.Context, id string) error
	Activate(ctx context.Context, id string, subIndex int) error
	Forget(ctx context.Context, id string) error
	PollAll(ctx context.Context) error
	IsDeleted(id string) bool
	Get(id string) (*background.TrackedItem, bool)
	Items() []*background.TrackedItem
	Summary() background.Summary
}

// RouteAdder defines behavior that sets the routes to bind for an instance
// of the service.
type RouteAdder interface {
	Add(app *web.App, cfg Config)
}

// WebAPI constructs a http.Handler with all application routes bound.
func WebAPI(cfg Config, routeAdder RouteAdder) http.Handler {
	logger := func(ctx context.Context, msg string, args ...any) {
		cfg.Log.Info(ctx, msg, args...)
	}

	app := web.NewApp(
		logger,
		mid.Otel(cfg.Tracer),
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Panics(),
	)

	routeAdder.Add(app, cfg)

	return app
}
