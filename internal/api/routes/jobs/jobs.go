// Package jobs binds the endpoints that drive the job monitor.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ahrav/jobwatch/internal/api/errs"
	"github.com/ahrav/jobwatch/internal/api/mux"
	"github.com/ahrav/jobwatch/internal/app/activation"
	"github.com/ahrav/jobwatch/internal/app/monitor"
	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/pkg/common/logger"
	"github.com/ahrav/jobwatch/pkg/web"
)

var _ mux.Monitor = (*monitor.Monitor)(nil)

// Config contains the dependencies needed by the job handlers.
type Config struct {
	Log     *logger.Logger
	Monitor mux.Monitor
	Status  background.StatusService
}

// Routes binds all the job endpoints.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	app.HandlerFunc(http.MethodPost, version, "/jobs", add(cfg))
	app.HandlerFunc(http.MethodPost, version, "/jobs/groups", addGroup(cfg))
	app.HandlerFunc(http.MethodGet, version, "/jobs", list(cfg))
	app.HandlerFunc(http.MethodGet, version, "/jobs/{id}", get(cfg))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/cancel", terminate("cancel", cfg.Monitor.Cancel))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/cleanup", terminate("cleanup", cfg.Monitor.Cleanup))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/dismiss", terminate("dismiss", cfg.Monitor.Dismiss))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/activate/{sub}", activate(cfg))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/forget", forget(cfg))
	app.HandlerFunc(http.MethodPost, version, "/poll", poll(cfg))
	app.HandlerFunc(http.MethodGet, version, "/summary", summary(cfg))
}

const maxGroupSize = 500

// addRequest starts monitoring a single job.
type addRequest struct {
	JobID     string `json:"job_id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	UIType    string `json:"ui_type" validate:"omitempty,oneof=NONE QUERY PACKAGE DOWNLOAD SCRIPT"`
	Watchable bool   `json:"watchable"`
}

// addGroupRequest starts monitoring several jobs as one composite item.
type addGroupRequest struct {
	GroupID   string   `json:"group_id,omitempty"`
	Title     string   `json:"title" validate:"required"`
	UIType    string   `json:"ui_type" validate:"omitempty,oneof=NONE QUERY PACKAGE DOWNLOAD SCRIPT"`
	Watchable bool     `json:"watchable"`
	JobIDs    []string `json:"job_ids" validate:"required,min=1,dive,required"`
}

// itemResponse is a tracked item as returned by the API.
type itemResponse struct {
	background.ItemSnapshot
	status int
}

// Encode implements the web.Encoder interface.
func (ir itemResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(ir.ItemSnapshot)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// HTTPStatus implements the httpStatus interface to set the response status code.
func (ir itemResponse) HTTPStatus() int {
	if ir.status == 0 {
		return http.StatusOK
	}
	return ir.status
}

type itemsResponse struct {
	Items []background.ItemSnapshot `json:"items"`
}

// Encode implements the web.Encoder interface.
func (ir itemsResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(ir)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// actionResponse acknowledges a command the monitor accepted.
type actionResponse struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Encode implements the web.Encoder interface.
func (ar actionResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(ar)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// HTTPStatus implements the httpStatus interface to set the response status code.
func (ar actionResponse) HTTPStatus() int { return http.StatusAccepted } // 202

type summaryResponse struct {
	background.Summary
}

// Encode implements the web.Encoder interface.
func (sr summaryResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(sr.Summary)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func add(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		var req addRequest
		if err := web.Decode(r, &req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		rec, err := cfg.Status.GetStatus(ctx, req.JobID)
		if err != nil {
			return errs.New(errs.Unavailable, fmt.Errorf("failed to get status for job %s: %w", req.JobID, err))
		}
		if rec.ID != req.JobID {
			return errs.Newf(errs.Unavailable, "status for job %s returned id %q", req.JobID, rec.ID)
		}

		item, err := background.NewTrackedItem(req.Title, uiType(req.UIType), req.Watchable, rec)
		if err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		if !cfg.Monitor.Add(ctx, item) {
			if cfg.Monitor.IsDeleted(item.ID()) {
				return errs.New(errs.FailedPrecondition, fmt.Errorf("%w: %s", monitor.ErrItemDeleted, item.ID()))
			}
			return errs.New(errs.Unavailable, monitor.ErrMonitorClosed)
		}

		return itemResponse{ItemSnapshot: item.Snapshot(), status: http.StatusCreated}
	}
}

func addGroup(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		var req addGroupRequest
		if err := web.Decode(r, &req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if len(req.JobIDs) > maxGroupSize {
			return errs.Newf(errs.InvalidArgument, "too many job ids: maximum allowed is %d", maxGroupSize)
		}

		item, err := cfg.Monitor.AddGroup(ctx, req.GroupID, req.Title, uiType(req.UIType), req.Watchable, req.JobIDs)
		if err != nil {
			if errors.Is(err, monitor.ErrItemDeleted) {
				return errs.New(errs.FailedPrecondition, err)
			}
			return errs.New(errs.Unavailable, err)
		}

		return itemResponse{ItemSnapshot: item.Snapshot(), status: http.StatusCreated}
	}
}

func list(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		items := cfg.Monitor.Items()
		resp := itemsResponse{Items: make([]background.ItemSnapshot, 0, len(items))}
		for _, it := range items {
			resp.Items = append(resp.Items, it.Snapshot())
		}
		return resp
	}
}

func get(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id := web.Param(r, "id")

		item, ok := cfg.Monitor.Get(id)
		if !ok {
			return errs.New(errs.NotFound, fmt.Errorf("%w: %s", background.ErrItemNotFound, id))
		}
		return itemResponse{ItemSnapshot: item.Snapshot()}
	}
}

func terminate(action string, call func(context.Context, string) error) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id := web.Param(r, "id")

		if err := call(ctx, id); err != nil {
			return toError(err)
		}
		return actionResponse{ID: id, Action: action}
	}
}

func activate(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id := web.Param(r, "id")

		sub, err := strconv.Atoi(web.Param(r, "sub"))
		if err != nil {
			return errs.New(errs.InvalidArgument, fmt.Errorf("invalid sub-job index: %w", err))
		}

		if err := cfg.Monitor.Activate(ctx, id, sub); err != nil {
			return toError(err)
		}
		return actionResponse{ID: id, Action: "activate"}
	}
}

func forget(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		if err := cfg.Monitor.Forget(ctx, web.Param(r, "id")); err != nil {
			return toError(err)
		}
		return nil
	}
}

func poll(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		if err := cfg.Monitor.PollAll(ctx); err != nil {
			return toError(err)
		}
		return actionResponse{Action: "poll"}
	}
}

func summary(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		return summaryResponse{Summary: cfg.Monitor.Summary()}
	}
}

// uiType maps a validated ui_type; empty selects NONE.
func uiType(s string) background.UIType {
	t, err := background.ParseUIType(s)
	if err != nil {
		return background.UITypeNone
	}
	return t
}

func toError(err error) *errs.Error {
	switch {
	case errors.Is(err, background.ErrItemNotFound):
		return errs.New(errs.NotFound, err)
	case errors.Is(err, background.ErrSubIndexOutOfRange):
		return errs.New(errs.InvalidArgument, err)
	case errors.Is(err, monitor.ErrNotReady),
		errors.Is(err, monitor.ErrItemDeleted),
		errors.Is(err, activation.ErrAlreadyActivated):
		return errs.New(errs.FailedPrecondition, err)
	case errors.Is(err, monitor.ErrMonitorClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return errs.New(errs.Unavailable, err)
	default:
		return errs.New(errs.Internal, err)
	}
}
