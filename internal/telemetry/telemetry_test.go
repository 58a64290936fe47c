package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestWithSearchPath(t *testing.T) {
	t.Run("url form", func(t *testing.T) {
		dsn, err := withSearchPath("postgres://app:pw@db:5432/shop?sslmode=disable", "storefront")
		require.NoError(t, err)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "storefront", u.Query().Get("search_path"))
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
		assert.Equal(t, "db:5432", u.Host)
	})

	t.Run("keyword form", func(t *testing.T) {
		dsn, err := withSearchPath("host=db dbname=shop", "storefront")
		require.NoError(t, err)
		assert.Equal(t, "host=db dbname=shop search_path=storefront", dsn)
	})

	t.Run("no schema", func(t *testing.T) {
		dsn, err := withSearchPath("host=db", "")
		require.NoError(t, err)
		assert.Equal(t, "host=db", dsn)
	})
}

func TestServerHandler_RecordsRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{id}", WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	handler := NewServerHandler(mux, "test", otelhttp.WithTracerProvider(tp))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	require.NoError(t, tp.ForceFlush(context.Background()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), semconv.HTTPRoute("GET /orders/{id}"))
}
