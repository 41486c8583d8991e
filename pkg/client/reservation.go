package client

import (
	"context"
	"net/url"
	"strconv"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type ReservationClient struct {
	httpClient *HttpClient
}

// NewReservationClient returns a client that authenticates every call with
// the given bearer token. An empty token makes anonymous calls.
func NewReservationClient(baseURL, token string) *ReservationClient {
	hc := NewHttpClient(baseURL)
	if token != "" {
		hc.Headers["Authorization"] = "Bearer " + token
	}
	return &ReservationClient{httpClient: hc}
}

func (c *ReservationClient) ListAvailable(ctx context.Context, from string, page, size int) (*Response, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return c.httpClient.Get(ctx, "/api/v1/reservations/slots?"+q.Encode())
}

// Reserve books the slot starting at slotStartTime. A non-empty
// idempotencyKey lets the call be retried safely.
func (c *ReservationClient) Reserve(ctx context.Context, slotStartTime, idempotencyKey string) (*Response, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyKeyHeader: idempotencyKey}
	}
	return c.httpClient.Post(ctx, "/api/v1/reservations", map[string]string{
		"slot_start_time": slotStartTime,
	}, headers)
}

func (c *ReservationClient) Cancel(ctx context.Context, slotID string) (*Response, error) {
	return c.httpClient.Delete(ctx, "/api/v1/reservations/"+url.PathEscape(slotID))
}
