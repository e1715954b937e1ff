// Copyright the qwm project authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"go.qwm.io/wm/core"
	"go.qwm.io/wm/manager"
	"go.qwm.io/wm/registry"
)

type nopTransport struct{}

func (nopTransport) UpdateGuaranteed(ctx context.Context, info *core.EndpointInfo, numGuaranteed int) error {
	return nil
}

func TestServerListenServeClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	mgr := manager.New(manager.DefaultConfig(), &nopTransport{}, reg)
	rgy := registry.New(reg)
	srv := NewServer("127.0.0.1", 0, mgr, rgy, reg)

	assert.False(t, srv.IsListening())
	assert.NoError(t, srv.Listen())
	assert.True(t, srv.IsListening())
	assert.NotEqual(t, 0, srv.Port())

	ctx, cancel := context.WithCancel(context.Background())
	var group errgroup.Group
	group.Go(func() error {
		err := srv.Serve(ctx)
		if err != context.Canceled && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	client := &http.Client{Timeout: time.Second}
	assert.Eventually(t, func() bool {
		resp, err := client.Get(srv.URL("/ping"))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		return err == nil && string(body) == "pong"
	}, time.Second, 10*time.Millisecond)

	resp, err := client.Get(fmt.Sprintf("http://%s:%d/metrics", srv.Host(), srv.Port()))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	assert.NoError(t, group.Wait())
}
