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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*gin.Engine, *findings.BadgerStore, *harness.Driver) {
	t.Helper()
	store, err := findings.OpenBadgerStore(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	opts := harness.DefaultOptions()
	opts.Mode = harness.Continuous
	opts.Logger = discard
	driver := harness.New(opts)

	router := NewRouter("adfuzz-test", NewHandlers(store, driver, discard), nil)
	return router, store, driver
}

func do(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func putFinding(t *testing.T, store findings.Store, data []byte) findings.Finding {
	t.Helper()
	f := findings.FromFailure(&harness.Failure{
		Kind:      harness.KindMismatch,
		Oracle:    "rev_gt",
		Expr:      expr.SqrtOf(expr.Var(0)),
		NumInputs: 1,
		Inputs:    []float64{4},
		Data:      data,
		Infix:     "sqrt(x_0)",
		Err:       errors.New("mismatch"),
	}, harness.Continuous)
	stored, _, err := store.Put(context.Background(), f)
	require.NoError(t, err)
	return stored
}

func TestHandleHealth(t *testing.T) {
	router, _, _ := setup(t)
	w := do(router, http.MethodGet, "/v1/adfuzz/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "continuous", resp.Mode)
}

func TestHandleListFindings(t *testing.T) {
	router, store, _ := setup(t)

	w := do(router, http.MethodGet, "/v1/adfuzz/findings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var empty FindingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Empty(t, empty.Findings)
	assert.NotNil(t, empty.Findings)

	putFinding(t, store, []byte{1})
	putFinding(t, store, []byte{2})

	w = do(router, http.MethodGet, "/v1/adfuzz/findings?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp FindingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Findings, 1)
	assert.Equal(t, 2, resp.Total)

	for _, bad := range []string{"0", "-3", "ten"} {
		w = do(router, http.MethodGet, "/v1/adfuzz/findings?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestHandleGetFinding(t *testing.T) {
	router, store, _ := setup(t)
	f := putFinding(t, store, []byte{7})

	w := do(router, http.MethodGet, "/v1/adfuzz/findings/"+f.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got findings.Finding
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "sqrt(x_0)", got.Infix)
	assert.Equal(t, []byte{7}, got.Data)

	w = do(router, http.MethodGet, "/v1/adfuzz/findings/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/v1/adfuzz/findings/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCheck(t *testing.T) {
	router, _, driver := setup(t)

	// point (3, 4) followed by the bytes that generate x_0 + x_1
	data := append(harness.EncodePoint([]float64{3, 4}), 2, 0, 0, 0, 0, 1, 0)
	body, err := json.Marshal(CheckRequest{Data: data})
	require.NoError(t, err)

	w := do(router, http.MethodPost, "/v1/adfuzz/check", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Outcome  string `json:"outcome"`
		Programs []struct {
			Infix        string               `json:"infix"`
			Value        float64              `json:"value"`
			Reverse      []float64            `json:"reverse"`
			GroundTruths map[string][]float64 `json:"ground_truths"`
		} `json:"programs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "passed", resp.Outcome)
	require.Len(t, resp.Programs, 1)
	assert.Equal(t, "(x_0 + x_1)", resp.Programs[0].Infix)
	assert.Equal(t, 7.0, resp.Programs[0].Value)
	assert.Equal(t, []float64{1, 1}, resp.Programs[0].Reverse)
	assert.Equal(t, []float64{1, 1}, resp.Programs[0].GroundTruths["tensor"])

	w = do(router, http.MethodGet, "/v1/adfuzz/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats harness.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, driver.Stats().Passed, stats.Passed)
	assert.Equal(t, int64(1), stats.Passed)

	w = do(router, http.MethodPost, "/v1/adfuzz/check", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnconfigured(t *testing.T) {
	router := NewRouter("adfuzz-test", NewHandlers(nil, nil, discard), nil)
	for _, path := range []string{"/v1/adfuzz/stats", "/v1/adfuzz/findings", "/v1/adfuzz/findings/" + uuid.NewString()} {
		w := do(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w := do(router, http.MethodGet, "/v1/adfuzz/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "adfuzz_iterations_total 1\n")
	})
	router := NewRouter("adfuzz-test", NewHandlers(nil, nil, discard), metrics)
	w := do(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adfuzz_iterations_total")
}

func TestNumberMarshal(t *testing.T) {
	out, err := json.Marshal([]Number{1.5, Number(math.NaN()), Number(math.Inf(-1))})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, "NaN", "-Inf"]`, string(out))
}
