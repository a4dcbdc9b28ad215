package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyJobReason(t *testing.T) {
	assert.Equal(t, JobReasonDeadlineExceeded, ClassifyJobReason(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, JobReasonSerializationFailure, ClassifyJobReason(&pgconn.PgError{Code: "40001"}))
	assert.Equal(t, JobReasonSerializationFailure, ClassifyJobReason(&pgconn.PgError{Code: "40P01"}))
	assert.Equal(t, JobReasonUniqueViolation, ClassifyJobReason(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, JobReasonDBLockTimeout, ClassifyJobReason(&pgconn.PgError{Code: "55P03"}))
	assert.Equal(t, JobReasonUnknown, ClassifyJobReason(errors.New("boom")))
}

func TestObserveSweepCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetricsForTest(registry)

	m.IncJobRun("reconcile")
	m.ObserveSweep("reconcile", 10, 2, 450)
	m.ObserveJobDuration("reconcile", 25*time.Millisecond)
	m.IncJobError("reconcile", errors.New("boom"))

	require.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("reconcile")))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.walletsChecked.WithLabelValues("reconcile")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.divergentWallets.WithLabelValues("reconcile")))
	assert.Equal(t, float64(450), testutil.ToFloat64(m.divergenceAmount))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("reconcile", JobReasonUnknown)))
}
