package relay

import (
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
)

type createInput struct {
	Body relay.CreateRequest
}

type createOutput struct {
	Body relay.ConnectionRequest
}

type syncInput struct {
	RequestID string `path:"id" doc:"ID приглашения"`
	Body      relay.SyncRequest
}

type syncOutput struct {
	Body merge.Result
}
