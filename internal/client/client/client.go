package client

import (
	"context"

	"github.com/dmitrijs2005/garrison/internal/proto"
)

type Client interface {
	Sync(ctx context.Context, token string, req *proto.SyncRequest) (*proto.SyncResponse, error)
}
