package api

import (
	"github.com/starford/specmon/internal/history"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/viewservice"
)

// StateResponse is the render state summary (aliased from the domain layer).
type StateResponse = viewservice.StateView

// StatusResponse describes the running monitor (aliased from the domain layer).
type StatusResponse = viewservice.StatusView

// ParamsRequest is the request body for PUT /params.
type ParamsRequest struct {
	Gain   *float64 `json:"gain" example:"1.5"`
	Offset *float64 `json:"offset" example:"-10"`
}

// ParamsResponse carries the applied gain and offset.
type ParamsResponse = params.Params

// HistoryResponse wraps recent renders.
type HistoryResponse struct {
	Renders []history.Row `json:"renders" validate:"required"`
}

// TracesResponse wraps the trace set.
type TracesResponse struct {
	Traces []viewservice.TraceView `json:"traces" validate:"required"`
}

// SnapshotResponse is returned after a snapshot is saved.
type SnapshotResponse struct {
	Filename string `json:"filename" example:"snapshot-000042-1a2b3c4d.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	Seq      uint64 `json:"seq" example:"42"`
	URL      string `json:"url" example:"/api/snapshots/snapshot-000042-1a2b3c4d.png" validate:"required"`
}
