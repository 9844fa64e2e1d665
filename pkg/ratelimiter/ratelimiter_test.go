package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNilRedisAllowsEverything(t *testing.T) {
	l := New(nil)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Allow(context.Background(), userID, "create_challenge", time.Minute))
	}
	assert.NoError(t, l.Clear(context.Background(), userID, "create_challenge"))
}

func TestRateLimitErrorUnwrapsToSentinel(t *testing.T) {
	var err error = &RateLimitError{Message: "please wait 30 seconds", RetryAfter: 30 * time.Second}

	assert.True(t, errors.Is(err, apperror.ErrRateLimitExceeded))
	assert.Equal(t, "please wait 30 seconds", err.Error())
}
