package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/proto"
	"github.com/dmitrijs2005/garrison/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSyncer struct{}

func (nopSyncer) Sync(context.Context, string, *proto.SyncRequest) (*proto.SyncResponse, error) {
	return &proto.SyncResponse{Accepted: []string{}}, nil
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := &config.Config{EndpointAddr: "127.0.0.1:0", SecretKey: "k"}
	app := newApp(c, logging.NewNop(), nil, nopSyncer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	c := &config.Config{EndpointAddr: "256.0.0.1:bad", SecretKey: "k"}
	app := newApp(c, logging.NewNop(), nil, nopSyncer{})

	err := app.Run(context.Background())
	assert.Error(t, err)
}
