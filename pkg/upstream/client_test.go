package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewClient(httpclient.NewClient(httpclient.DefaultConfig(), logger), server.URL+"/", logger)
}

func TestClient_GetShipmentAndOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer APP_USR-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/shipments/45399487764":
			_, _ = w.Write([]byte(`{"id": 45399487764, "order_id": 2000008113466484}`))
		case "/orders/2000008113466484":
			_, _ = w.Write([]byte(`{"id": 2000008113466484}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	shipment, err := client.GetShipment(context.Background(), "APP_USR-1", "45399487764")
	require.NoError(t, err)
	assert.Equal(t, json.Number("2000008113466484"), shipment["order_id"])

	order, err := client.GetOrder(context.Background(), "APP_USR-1", "2000008113466484")
	require.NoError(t, err)
	assert.Equal(t, json.Number("2000008113466484"), order["id"])
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected apperrors.Kind
	}{
		{name: "not found", status: http.StatusNotFound, expected: apperrors.KindNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, expected: apperrors.KindTransport},
		{name: "server error", status: http.StatusBadGateway, expected: apperrors.KindTransport},
		{name: "array body", status: http.StatusOK, body: `[]`, expected: apperrors.KindTransport},
		{name: "html body", status: http.StatusOK, body: `<html></html>`, expected: apperrors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.GetShipment(context.Background(), "tok", "1")
			require.Error(t, err)
			assert.Equal(t, tt.expected, apperrors.KindOf(err))
		})
	}
}

func TestClient_EmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.GetOrder(context.Background(), "tok", " ")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	client := NewClient(httpclient.NewClient(httpclient.DefaultConfig(), logger), server.URL, logger)

	_, err := client.GetShipment(context.Background(), "tok", "1")
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
}
