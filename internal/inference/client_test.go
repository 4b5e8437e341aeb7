package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/pkg/circuitbreaker"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

func newServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{
		BaseURL:             srv.URL + "/",
		Timeout:             2 * time.Second,
		BreakerMaxFailures:  2,
		BreakerOpenDuration: time.Minute,
	}, metrics.NewNop())
}

func TestHTTPClient_Stages(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "aGVsbG8=", body["image_base64"])

		switch r.URL.Path {
		case "/detect":
			_, _ = w.Write([]byte(`{"class_index":1,"confidence":0.91}`))
		case "/classify":
			_, _ = w.Write([]byte(`{"label":"glioma","confidence":0.93,"probabilities":{"glioma":0.93}}`))
		case "/segment":
			assert.Equal(t, "glioma", body["label"])
			_, _ = w.Write([]byte(`{"annotated_image":"YW5ub3RhdGVk","mask_base64":"bWFzaw=="}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	det, err := c.Detect(ctx, "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, 1, det.ClassIndex)
	assert.InDelta(t, 0.91, det.Confidence, 1e-9)

	cls, err := c.Classify(ctx, "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "glioma", cls.Label)

	seg, err := c.Segment(ctx, "aGVsbG8=", cls.Label, cls.Confidence)
	require.NoError(t, err)
	assert.Equal(t, "YW5ub3RhdGVk", seg.AnnotatedImage)
	require.NotNil(t, seg.MaskBase64)
	assert.Equal(t, "bWFzaw==", *seg.MaskBase64)
}

func TestHTTPClient_RejectedDoesNotTripBreaker(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Detect(context.Background(), "x")
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.cb.State())
}

func TestHTTPClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Detect(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := c.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(Config{BaseURL: url, Timeout: time.Second}, nil)
	_, err := c.Detect(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_ClassifyWithoutLabel(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":0.5}`))
	})

	_, err := c.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}
