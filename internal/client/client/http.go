package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/netx"
	"github.com/dmitrijs2005/garrison/internal/proto"
)

type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPClient returns a client for the server at baseURL. A nil hc uses a
// fresh http.Client; deadlines come from the call context.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (c *HTTPClient) Sync(ctx context.Context, token string, req *proto.SyncRequest) (*proto.SyncResponse, error) {
	h := http.Header{}
	h.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	h.Set(common.DeviceIDHeaderName, req.DeviceID)

	if req.Operations == nil {
		req.Operations = []proto.ChangeEnvelope{}
	}

	var resp proto.SyncResponse
	if err := netx.PostJSON(ctx, c.hc, c.baseURL+proto.SyncPath, h, req, &resp); err != nil {
		return nil, c.mapError(err)
	}
	return &resp, nil
}

func (c *HTTPClient) mapError(err error) error {
	var se *netx.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case se.Code >= 500, se.Code == http.StatusRequestTimeout, se.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		default:
			return fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}
	if errors.Is(err, netx.ErrDecode) || errors.Is(err, netx.ErrEncode) {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
