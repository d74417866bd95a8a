package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/erazemk/izposoja/internal/model"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(&model.ValidationError{Field: "quantity", Reason: "must be positive"}))
	assert.Equal(t, "not_found", Outcome(model.NotFoundf("item %d", 1)))
	assert.Equal(t, "rejected", Outcome(fmt.Errorf("checking stock: %w", model.ErrInsufficientStock)))
	assert.Equal(t, "rejected", Outcome(model.ErrInvalidOwner))
	assert.Equal(t, "error", Outcome(errors.New("disk I/O error")))
}

func TestNotificationPushesCounter(t *testing.T) {
	before := testutil.ToFloat64(NotificationPushes.WithLabelValues("delivered"))
	NotificationPushes.WithLabelValues("delivered").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationPushes.WithLabelValues("delivered")))
}
