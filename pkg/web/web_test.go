package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textResponse string

func (t textResponse) Encode() ([]byte, string, error) { return []byte(t), "text/plain", nil }

type createdResponse struct{ textResponse }

func (createdResponse) HTTPStatus() int { return http.StatusCreated }

func noopLog(context.Context, string, ...any) {}

func TestApp_MiddlewareOrderAndStatus(t *testing.T) {
	var order []string
	tag := func(name string) MidFunc {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, r *http.Request) Encoder {
				order = append(order, name)
				return next(ctx, r)
			}
		}
	}

	app := NewApp(noopLog, tag("outer"), tag("inner"))
	app.HandlerFunc(http.MethodPost, "v1", "/things/{id}", func(ctx context.Context, r *http.Request) Encoder {
		return createdResponse{textResponse(Param(r, "id"))}
	}, tag("route"))
	app.HandlerFuncNoMid(http.MethodGet, "v1", "/empty", func(ctx context.Context, r *http.Request) Encoder {
		return nil
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/things/42", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"outer", "inner", "route"}, order)

	order = nil
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/empty", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, order)

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, "a", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, Decode(r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	assert.Error(t, Decode(r, &v))
}
