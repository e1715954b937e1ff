// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.qwm.io/wm/core"
)

// ErrUpdateRejected returned when the endpoint answers an allocation
// update with a non-2xx status.
var ErrUpdateRejected = errors.New("ErrUpdateRejected")

// Transport delivers guaranteed-allocation updates to a session's
// endpoint. The coordination core never touches it; only the manager's
// sender does.
type Transport interface {
	UpdateGuaranteed(ctx context.Context, info *core.EndpointInfo, numGuaranteed int) error
}

type updateGuaranteedRequest struct {
	NumGuaranteed int    `json:"numGuaranteed"`
	JobID         string `json:"jobId"`
}

type httpTransport struct {
	client *http.Client
}

// NewHTTP returns a Transport that posts allocation updates to the
// endpoint's plugin port over HTTP.
func NewHTTP(timeout time.Duration) Transport {
	return &httpTransport{client: &http.Client{Timeout: timeout}}
}

func (t *httpTransport) UpdateGuaranteed(ctx context.Context, info *core.EndpointInfo, numGuaranteed int) error {
	body, err := json.Marshal(updateGuaranteedRequest{
		NumGuaranteed: numGuaranteed,
		JobID:         info.TokenJobID,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d/plugin/guaranteed", info.Host, info.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if info.Token != "" {
		req.Header.Set("Authorization", "Bearer "+info.Token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %s", ErrUpdateRejected, resp.Status)
	}
	return nil
}
