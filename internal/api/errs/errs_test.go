package errs

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	ID   string `json:"id" validate:"required"`
	Kind string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(request{ID: "x", Kind: "a"}))

	err := Check(request{Kind: "z"})
	require.Error(t, err)

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 2)
	assert.Equal(t, "id", fe[0].Name)
	assert.Equal(t, "kind", fe[1].Name)
}

func TestError_Encode(t *testing.T) {
	e := New(InvalidArgument, Check(request{}))
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())

	data, contentType, err := e.Encode()
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "invalid_argument", body["code"])
	assert.Equal(t, "request validation failed", body["message"])
	assert.Len(t, body["fields"], 1)

	nf := New(NotFound, errors.New("missing"))
	assert.Equal(t, http.StatusNotFound, nf.HTTPStatus())
	assert.Equal(t, "missing", nf.Error())
	assert.True(t, IsError(nf))
}
