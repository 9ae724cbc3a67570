package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/config"
	"github.com/copyleftdev/sqpforge/internal/logging"
	"github.com/copyleftdev/sqpforge/internal/sqp"
)

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stdout"

	cfg.Optimization.WorkerCount = 3

	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	return logging.New(logging.DebugLevel, &discardWriter{})
}

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewServer(t *testing.T) {
	logger := testLogger(t)
	cfg := testConfig(t)

	srv := NewServer(cfg, logger)
	assert.NotNil(t, srv, "Server should be created")
}

func TestRegisterRoutes(t *testing.T) {
	logger := testLogger(t)
	cfg := testConfig(t)

	srv := NewServer(cfg, logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/plan", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/plan/123", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false},
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if tt.shouldExist && !r.Match(chi.NewRouteContext(), tt.method, tt.path) {
				t.Errorf("Route %s %s should exist but is not registered", tt.method, tt.path)
			}
		})
	}
}

func TestClose(t *testing.T) {
	logger := testLogger(t)
	cfg := testConfig(t)

	srv := NewServer(cfg, logger)
	err := srv.Close()
	assert.NoError(t, err, "Close should not return an error")
}

func TestParamsFromConfigAppliesOptimizationSection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.MaxIterations = 7
	cfg.Optimization.InitialTrustBoxSize = 0.25

	p := paramsFromConfig(cfg)
	assert.Equal(t, 7, p.MaxIterations)
	assert.Equal(t, 0.25, p.InitialTrustBoxSize)
}

func TestParamsFromConfigFallsBackToDefaultsWhenNil(t *testing.T) {
	p := paramsFromConfig(nil)
	assert.Equal(t, sqp.DefaultParams(), p)
}

func TestRespondWithError(t *testing.T) {
	logger := testLogger(t)
	cfg := testConfig(t)

	srv := NewServer(cfg, logger)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
		expectCode int
	}{
		{
			name:       "valid error response",
			code:       http.StatusBadRequest,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
			expectCode: http.StatusOK,
		},
		{
			name:       "nil id",
			code:       http.StatusInternalServerError,
			message:    "server error",
			id:         nil,
			expectedID: nil,
			expectCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, tt.expectCode, rr.Code, "status code should match")

			var response map[string]interface{}
			err := json.NewDecoder(rr.Body).Decode(&response)
			assert.NoError(t, err, "should decode response body")

			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	logger := testLogger(t)
	cfg := testConfig(t)

	srv := NewServer(cfg, logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	reqBody := map[string]interface{}{
		"problem": map[string]interface{}{
			"dof":         2,
			"steps":       2,
			"joint_lower": []float64{-10, -10},
			"joint_upper": []float64{10, 10},
			"costs": []map[string]interface{}{
				{
					"type": "joint_position",
					"params": map[string]interface{}{
						"name":   "pos",
						"step":   1,
						"target": []float64{1, 1},
						"weight": 1.0,
					},
				},
			},
		},
	}
	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var started map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&started))
	planID, ok := started["plan_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, planID)

	var status map[string]interface{}
	require.Eventually(t, func() bool {
		statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/status/"+planID, nil)
		statusRR := httptest.NewRecorder()
		r.ServeHTTP(statusRR, statusReq)
		if statusRR.Code != http.StatusOK {
			return false
		}
		status = nil
		_ = json.NewDecoder(statusRR.Body).Decode(&status)
		s, _ := status["status"].(string)
		return s == "completed" || s == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "completed", status["status"])
}
