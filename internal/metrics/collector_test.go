package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/groverq/internal/quantum"
)

type stubBackend struct {
	errs []error
	call int
}

func (b *stubBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	err := b.errs[b.call%len(b.errs)]
	b.call++
	if err != nil {
		return nil, err
	}
	return quantum.Counts{"0": shots}, nil
}

func TestCollector_RecordEpisode(t *testing.T) {
	c := NewCollector("test", zerolog.Nop())

	c.RecordEpisode(6, true)
	c.RecordEpisode(100, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.episodesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.goalsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.episodeSteps))
}

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector("test", zerolog.Nop())

	c.RecordRun("completed", 2*time.Second, 5)
	c.RecordRun("failed", time.Second, 0)
	c.RecordRun("completed", time.Second, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.saturatedPairs))
}

func TestInstrumentedBackend(t *testing.T) {
	c := NewCollector("test", zerolog.Nop())
	inner := &stubBackend{errs: []error{
		nil,
		&quantum.TransientError{Err: errors.New("busy")},
		errors.New("bad circuit"),
	}}
	backend := c.Instrument(inner)

	counts, err := backend.Execute(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Shots())

	_, err = backend.Execute(context.Background(), nil, 1)
	assert.True(t, quantum.IsTransient(err))
	_, err = backend.Execute(context.Background(), nil, 1)
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCallsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCallsTotal.WithLabelValues("transient_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCallsTotal.WithLabelValues("error")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("groverq", zerolog.Nop())
	c.SetQueueDepth(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "groverq_queue_depth 4")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("same", zerolog.Nop())
	b := NewCollector("same", zerolog.Nop())

	a.RecordEpisode(1, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.episodesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.episodesTotal))
}
