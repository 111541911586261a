// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes a running fuzz session over HTTP: recorded findings,
// the driver's counters and an endpoint that replays a single input.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// DefaultListLimit caps GET /findings when no limit is given.
const DefaultListLimit = 50

// Handlers serves the adfuzz endpoints.
type Handlers struct {
	store  findings.Store
	driver *harness.Driver
	logger *slog.Logger
}

// NewHandlers returns handlers over store and driver. Either may be nil;
// the endpoints that need a missing one answer 503.
func NewHandlers(store findings.Store, driver *harness.Driver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, driver: driver, logger: logger.With(slog.String("component", "api"))}
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error: what + " is not configured",
		Code:  "UNAVAILABLE",
	})
}

// HandleHealth handles GET /v1/adfuzz/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	mode := ""
	if h.driver != nil {
		mode = h.driver.Options().Mode.String()
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion, Mode: mode})
}

// HandleStats handles GET /v1/adfuzz/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	if h.driver == nil {
		unavailable(c, "driver")
		return
	}
	c.JSON(http.StatusOK, h.driver.Stats())
}

// HandleListFindings handles GET /v1/adfuzz/findings.
//
// Query Parameters:
//
//	limit - Maximum findings to return, newest first. Default 50.
//
// Response:
//
//	200 OK: FindingsResponse
//	400 Bad Request: limit is not a positive integer
//	503 Service Unavailable: no findings store
func (h *Handlers) HandleListFindings(c *gin.Context) {
	if h.store == nil {
		unavailable(c, "findings store")
		return
	}
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_LIMIT",
			})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	list, err := h.store.List(ctx, limit)
	if err != nil {
		h.logger.Error("list findings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LIST_FAILED"})
		return
	}
	total, err := h.store.Count(ctx)
	if err != nil {
		h.logger.Error("count findings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LIST_FAILED"})
		return
	}
	if list == nil {
		list = []findings.Finding{}
	}
	c.JSON(http.StatusOK, FindingsResponse{Findings: list, Total: total})
}

// HandleGetFinding handles GET /v1/adfuzz/findings/:id.
func (h *Handlers) HandleGetFinding(c *gin.Context) {
	if h.store == nil {
		unavailable(c, "findings store")
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "id must be a UUID", Code: "INVALID_ID"})
		return
	}
	f, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, findings.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
		return
	}
	if err != nil {
		h.logger.Error("get finding failed", slog.String("id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "GET_FAILED"})
		return
	}
	c.JSON(http.StatusOK, f)
}

// HandleCheck handles POST /v1/adfuzz/check.
//
// Description:
//
//	Runs one fuzz input through the driver and returns every program it
//	generated with the Jacobians of each engine. An escalating failure is
//	reported in the body rather than aborting the server.
//
// Response:
//
//	200 OK: CheckResponse
//	400 Bad Request: missing or malformed data
//	503 Service Unavailable: no driver
func (h *Handlers) HandleCheck(c *gin.Context) {
	if h.driver == nil {
		unavailable(c, "driver")
		return
	}
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	it, err := h.driver.Run(c.Request.Context(), req.Data)
	if err != nil {
		h.logger.Warn("checked input escalated", slog.String("error", err.Error()))
	}
	c.JSON(http.StatusOK, newCheckResponse(it))
}
