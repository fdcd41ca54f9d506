package gwerrors_test

import (
	"errors"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

func TestHTTPStatus(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		kind   gwerrors.Kind
		status int
	}{
		{gwerrors.KindDatabaseNotFound, http.StatusNotFound},
		{gwerrors.KindDatabaseAlreadyExists, http.StatusConflict},
		{gwerrors.KindInvalidRequest, http.StatusBadRequest},
		{gwerrors.KindUnauthorized, http.StatusForbidden},
		{gwerrors.KindPlatformIsolationViolation, http.StatusForbidden},
		{gwerrors.KindMigrationFailed, http.StatusInternalServerError},
		{gwerrors.KindConnectionFailed, http.StatusServiceUnavailable},
		{gwerrors.KindPoolExhausted, http.StatusServiceUnavailable},
		{gwerrors.KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		e := gwerrors.New(tc.kind, "boom")
		c.Assert(e.HTTPStatus(), qt.Equals, tc.status)
	}
}

func TestWrapUnwrap(t *testing.T) {
	c := qt.New(t)

	cause := errors.New("connection refused")
	e := gwerrors.Wrap(gwerrors.KindConnectionFailed, cause, "could not reach %s", "db1")

	c.Assert(errors.Is(e, cause), qt.IsTrue)
	c.Assert(e.WithDatabase("db1").Database, qt.Equals, "db1")
}

func TestToEnvelope(t *testing.T) {
	c := qt.New(t)

	e := gwerrors.New(gwerrors.KindDatabaseNotFound, "no such database").WithDatabase("app_main_prod")
	env := gwerrors.ToEnvelope(e)

	c.Assert(env.Error, qt.Equals, string(gwerrors.KindDatabaseNotFound))
	c.Assert(env.Database, qt.Equals, "app_main_prod")

	plain := errors.New("unexpected")
	env2 := gwerrors.ToEnvelope(plain)
	c.Assert(env2.Error, qt.Equals, string(gwerrors.KindInternal))
}
