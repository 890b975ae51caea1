package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindPredicates(t *testing.T) {
	if !IsNotFound(NotFound("missing %s", "x")) {
		t.Error("NotFound must satisfy IsNotFound")
	}
	if !IsConflict(Conflict("taken")) {
		t.Error("Conflict must satisfy IsConflict")
	}
	if !IsRateLimited(RateLimited("too many")) {
		t.Error("RateLimited must satisfy IsRateLimited")
	}
	if !IsBadInput(BadInput("bad")) {
		t.Error("BadInput must satisfy IsBadInput")
	}
	if IsNotFound(Conflict("taken")) {
		t.Error("kinds must not cross-match")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("untagged error has no kind")
	}
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	inner := NotFound("no document at members:a")
	wrapped := fmt.Errorf("resolving alice: %w", inner)

	if !IsNotFound(wrapped) {
		t.Error("kind must survive wrapping")
	}
}

func TestStorageCarriesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause, "writing blob %s", "abc")

	if !errors.Is(err, cause) {
		t.Error("cause must be reachable via errors.Is")
	}
	if !IsStorage(err) {
		t.Error("expected KindStorage")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		NotFound("x"):             http.StatusNotFound,
		Conflict("x"):             http.StatusConflict,
		RateLimited("x"):          http.StatusTooManyRequests,
		BadInput("x"):             http.StatusBadRequest,
		Forbidden("x"):            http.StatusForbidden,
		Storage(errors.New("x"), "x"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := err.HTTPStatus(); got != want {
			t.Errorf("%s: HTTPStatus = %d, want %d", err.Kind, got, want)
		}
	}
}
