package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-fundo-ops/internal/apperr"

	"github.com/go-resty/resty/v2"
)

// SyncRequest is the body of POST /api/v1/sync/:queue_id.
type SyncRequest struct {
	Records []PendingRecord `json:"records"`
}

type SyncResponse struct {
	QueueID  string `json:"queue_id"`
	Accepted int    `json:"accepted"`
}

type syncError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// RemoteSink posts batches to the farm server.
type RemoteSink struct {
	httpClient *resty.Client
}

// NewRemoteSink builds a resty client against baseURL, authenticating with
// a bearer token when one is given.
func NewRemoteSink(baseURL, token string, timeout time.Duration) *RemoteSink {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if token != "" {
		restyClient.SetAuthToken(token)
	}
	return &RemoteSink{httpClient: restyClient}
}

func (s *RemoteSink) Submit(ctx context.Context, queueID string, records []PendingRecord) error {
	result := new(SyncResponse)
	apiErr := new(syncError)

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(SyncRequest{Records: records}).
		SetResult(result).
		SetError(apiErr).
		Post("/api/v1/sync/" + url.PathEscape(queueID))
	if err != nil {
		// no response at all: offline, DNS, timeout
		return apperr.Transient(fmt.Errorf("sync %s: %w", queueID, err))
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		if apiErr.Kind != "" {
			return apperr.New(apperr.Kind(apiErr.Kind), apiErr.Error)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return apperr.Transient(fmt.Errorf("sync %s: server returned %d", queueID, resp.StatusCode()))
		}
		return fmt.Errorf("sync %s: server returned %d: %s", queueID, resp.StatusCode(), apiErr.Error)
	}
	if result.Accepted != len(records) {
		return fmt.Errorf("sync %s: server accepted %d of %d records", queueID, result.Accepted, len(records))
	}
	return nil
}

// Acceptor is the server-side half of a sync, implemented by the sync
// service.
type Acceptor interface {
	Accept(ctx context.Context, queueID string, records []PendingRecord) (int, error)
}

// LocalSink hands batches straight to an in-process Acceptor, for a device
// that runs next to the database.
type LocalSink struct {
	acceptor Acceptor
}

func NewLocalSink(a Acceptor) *LocalSink { return &LocalSink{acceptor: a} }

func (s *LocalSink) Submit(ctx context.Context, queueID string, records []PendingRecord) error {
	n, err := s.acceptor.Accept(ctx, queueID, records)
	if err != nil {
		return err
	}
	if n != len(records) {
		return errors.New("sync accepted a partial batch")
	}
	return nil
}
