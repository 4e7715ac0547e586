package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapKeepsSentinelMatchable(t *testing.T) {
	err := Wrap(ErrConflict, "username already taken")
	if !errors.Is(err, ErrConflict) {
		t.Fatal("wrapped error lost its sentinel")
	}
	if err.Error() != "username already taken" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestWrapSurvivesFurtherWrapping(t *testing.T) {
	err := fmt.Errorf("create account: %w", Wrap(ErrValidation, "username is required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("sentinel lost through fmt.Errorf")
	}
	if MapErrorToStatus(err) != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", MapErrorToStatus(err))
	}
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrValidation, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{ErrDependency, http.StatusBadGateway},
		{ErrRateLimitExceeded, http.StatusTooManyRequests},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := MapErrorToStatus(tc.err); got != tc.want {
			t.Errorf("MapErrorToStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMapErrorToStatusExplicitCode(t *testing.T) {
	err := New(http.StatusTeapot, "short and stout", nil)
	if got := MapErrorToStatus(err); got != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", got, http.StatusTeapot)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnauthorized, "unauthorized"},
		{ErrForbidden, "forbidden"},
		{Wrap(ErrValidation, "bad input"), "validation_error"},
		{Wrap(ErrConflict, "taken"), "conflict"},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("%w: store down", ErrDependency), "dependency_failure"},
		{ErrRateLimitExceeded, "rate_limited"},
		{errors.New("mystery"), "internal_error"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestAppErrorMessageFallsBackToCause(t *testing.T) {
	err := New(0, "", errors.New("root cause"))
	if err.Error() != "root cause" {
		t.Fatalf("message = %q", err.Error())
	}
}
