package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		Desc string
		Err  error
		Want int
	}{
		{Desc: "user not found", Err: ErrUserNotFound, Want: http.StatusNotFound},
		{Desc: "wrapped group not found", Err: fmt.Errorf("load: %w", ErrGroupNotFound), Want: http.StatusNotFound},
		{Desc: "challenge not found", Err: ErrChallengeNotFound, Want: http.StatusNotFound},
		{Desc: "not authenticated", Err: ErrUnauthorized, Want: http.StatusUnauthorized},
		{Desc: "invalid input", Err: fmt.Errorf("chapter out of range: %w", ErrInvalidInput), Want: http.StatusBadRequest},
		{Desc: "transition", Err: Transition("challenge is no longer pending"), Want: http.StatusConflict},
		{Desc: "bare transition sentinel", Err: ErrInvalidTransition, Want: http.StatusConflict},
		{Desc: "rate limit", Err: ErrRateLimitExceeded, Want: http.StatusTooManyRequests},
		{Desc: "unknown", Err: errors.New("boom"), Want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			assert.Equal(t, tc.Want, MapErrorToStatus(tc.Err))
		})
	}
}

func TestTransitionKeepsReason(t *testing.T) {
	err := Transition("only the challenged group's leader can accept")

	assert.Equal(t, "only the challenged group's leader can accept", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
