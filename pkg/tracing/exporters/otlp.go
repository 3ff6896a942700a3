package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	defaultTimeout      = 10 * time.Second
)

// OTLPConfig describes the collector spans are shipped to.
type OTLPConfig struct {
	// Endpoint is host:port. A scheme prefix is tolerated and stripped.
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

// ParseHeaders reads "key=value,key2=value2" as used by OTLP_HEADERS
func ParseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid OTLP header %q", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// normalize fills defaults and returns the endpoint in the host:port form both exporters expect.
func (c OTLPConfig) normalize() (OTLPConfig, error) {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return c, fmt.Errorf("unsupported OTLP protocol: %s (use 'grpc' or 'http')", c.Protocol)
	}

	endpoint := strings.TrimSpace(c.Endpoint)
	if scheme, rest, ok := strings.Cut(endpoint, "://"); ok {
		if scheme == "http" {
			c.Insecure = true
		}
		endpoint = rest
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		endpoint = defaultGRPCEndpoint
		if c.Protocol == ProtocolHTTP {
			endpoint = defaultHTTPEndpoint
		}
	}
	c.Endpoint = endpoint

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c, nil
}

// NewOTLPExporter creates the span exporter for the configured protocol.
func NewOTLPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	config, err := config.normalize()
	if err != nil {
		return nil, err
	}

	if config.Protocol == ProtocolHTTP {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithTimeout(config.Timeout),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(config.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(config.Timeout),
	}
	if config.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}
