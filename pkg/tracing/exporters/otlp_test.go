package exporters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       OTLPConfig
		expected OTLPConfig
		wantErr  bool
	}{
		{
			name:     "defaults",
			in:       OTLPConfig{},
			expected: OTLPConfig{Endpoint: "localhost:4317", Protocol: "grpc", Timeout: 10 * time.Second},
		},
		{
			name:     "http default endpoint",
			in:       OTLPConfig{Protocol: "HTTP"},
			expected: OTLPConfig{Endpoint: "localhost:4318", Protocol: "http", Timeout: 10 * time.Second},
		},
		{
			name:     "scheme stripped",
			in:       OTLPConfig{Endpoint: "http://collector:4318/", Protocol: "http", Timeout: time.Second},
			expected: OTLPConfig{Endpoint: "collector:4318", Protocol: "http", Insecure: true, Timeout: time.Second},
		},
		{
			name:     "https keeps tls",
			in:       OTLPConfig{Endpoint: "https://collector:4317"},
			expected: OTLPConfig{Endpoint: "collector:4317", Protocol: "grpc", Timeout: 10 * time.Second},
		},
		{
			name:    "unknown protocol",
			in:      OTLPConfig{Protocol: "thrift"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.normalize()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := ParseHeaders(" api-key = abc ,x-team=logistics,,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api-key": "abc", "x-team": "logistics"}, headers)

	headers, err = ParseHeaders("")
	require.NoError(t, err)
	assert.Empty(t, headers)

	_, err = ParseHeaders("novalue")
	assert.Error(t, err)
}
