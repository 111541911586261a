// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the adfuzz endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/adfuzz/health        - Liveness and driver mode
//	GET  /v1/adfuzz/stats         - Cumulative driver counters
//	GET  /v1/adfuzz/findings      - Recorded findings, newest first
//	GET  /v1/adfuzz/findings/:id  - One finding
//	POST /v1/adfuzz/check         - Replay one fuzz input
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/adfuzz")
	g.GET("/health", h.HandleHealth)
	g.GET("/stats", h.HandleStats)
	g.GET("/findings", h.HandleListFindings)
	g.GET("/findings/:id", h.HandleGetFinding)
	g.POST("/check", h.HandleCheck)
}

// NewRouter returns a gin engine with tracing, recovery and the adfuzz
// routes under /v1. A non-nil metrics handler is mounted at /metrics.
func NewRouter(serviceName string, h *Handlers, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	RegisterRoutes(router.Group("/v1"), h)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
