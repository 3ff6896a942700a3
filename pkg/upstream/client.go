// Package upstream fetches shipment and order documents from the marketplace logistics API.
package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const DefaultBaseURL = "https://api.mercadolibre.com"

// Client reads upstream documents with a seller bearer token.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

func NewClient(http *httpclient.Client, baseURL string, logger ectologger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// GetShipment fetches /shipments/{id}
func (c *Client) GetShipment(ctx context.Context, token, shipmentID string) (map[string]any, error) {
	return c.fetch(ctx, "shipments", token, shipmentID)
}

// GetOrder fetches /orders/{id}
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (map[string]any, error) {
	return c.fetch(ctx, "orders", token, orderID)
}

func (c *Client) fetch(ctx context.Context, resource, token, id string) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "upstream."+resource)
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Newf(apperrors.KindNotFound, "empty %s id", resource)
	}

	endpoint := c.baseURL + "/" + resource + "/" + url.PathEscape(id)
	resp, err := c.http.Get(ctx, endpoint, map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, apperrors.Wrapf(apperrors.KindTransport, err, "failed to fetch %s %s", resource, id)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.Newf(apperrors.KindNotFound, "%s %s not found upstream", resource, id)
	}
	if !resp.IsSuccess() {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"resource":    resource,
			"id":          id,
			"status_code": resp.StatusCode,
		}).Warn("Upstream returned a non-success status")
		return nil, apperrors.Newf(apperrors.KindTransport, "%s %s returned status %d", resource, id, resp.StatusCode)
	}

	doc, err := httpclient.DecodeObject(resp)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, apperrors.Wrapf(apperrors.KindTransport, err, "invalid %s %s body", resource, id)
	}
	return doc, nil
}
