package session

import (
	"stockcount/internal/domain/session"
)

type addLineInput struct {
	SessionID string `path:"id" doc:"ID сессии инвентаризации"`
	Body      session.AddLineRequest
}

type updateLineInput struct {
	SessionID string `path:"id" doc:"ID сессии инвентаризации"`
	LineID    string `path:"lineId" doc:"ID строки сессии"`
	Body      session.UpdateLineRequest
}

type listLinesInput struct {
	SessionID string `path:"id" doc:"ID сессии инвентаризации"`
}

type lineOutput struct {
	Status int
	Body   session.LineResponse
}

type listLinesOutput struct {
	Body listResponse
}

type listResponse struct {
	Lines []session.LineResponse `json:"lines"`
	Total int                    `json:"total"`
}
