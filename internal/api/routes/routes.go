// Package routes binds all the API routes.
package routes

import (
	"github.com/ahrav/jobwatch/internal/api/mux"
	"github.com/ahrav/jobwatch/internal/api/routes/jobs"
	"github.com/ahrav/jobwatch/pkg/web"
)

// Routes constructs an add value which provides the implementation of
// RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouteAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	jobs.Routes(app, jobs.Config{
		Log:     cfg.Log,
		Monitor: cfg.Monitor,
		Status:  cfg.Status,
	})
}
