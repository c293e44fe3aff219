package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func envelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// ─── health ───

func TestHealth(t *testing.T) {
	t.Run("healthy server prints services", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/health", r.URL.Path)
			envelope(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"services": map[string]string{"redis": "ok", "database": "ok"},
			})
		}))
		defer srv.Close()

		out, err := runCLI(t, srv, "health")
		require.NoError(t, err)
		assert.Equal(t, "Server Status: ok\n  database: ok\n  redis: ok\n", out)
	})

	t.Run("degraded server is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":"DEGRADED","message":"one or more services are unavailable"}}`))
		}))
		defer srv.Close()

		_, err := runCLI(t, srv, "health")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DEGRADED")
	})
}

// ─── predict ───

func TestPredict_SendsOnlyChangedFlags(t *testing.T) {
	var body map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		envelope(w, http.StatusOK, map[string]any{
			"prediction":     "high",
			"probabilities":  map[string]float64{"normal": 0.1, "medium": 0.2, "high": 0.7},
			"features_used":  map[string]float64{"param1": 20, "param2": 0, "param3": 5, "temperature": 20, "humidity": 60},
			"recommendation": "Immediate inspection required",
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "predict", "--param1", "20", "--param3", "5")
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"param1": 20, "param3": 5}, body)
	assert.Contains(t, out, "Risk: high\n")
	assert.Contains(t, out, "Recommendation: Immediate inspection required\n")
	assert.Contains(t, out, "  high    0.700\n")
}

func TestPredict_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		envelope(w, http.StatusOK, map[string]any{
			"prediction":    "normal",
			"probabilities": map[string]float64{"normal": 1},
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "--json", "predict")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "normal", got["prediction"])
}

func TestPredict_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_REQUEST","message":"invalid JSON body"}}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, srv, "predict", "--humidity", "50")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predict")
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

// ─── training ───

func TestTrainAndBootstrap(t *testing.T) {
	tests := []struct {
		name   string
		cmd    string
		path   string
		source string
	}{
		{"train", "train", "/api/v1/predict/train", "inspections"},
		{"bootstrap", "bootstrap", "/api/v1/predict/bootstrap", "synthetic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				envelope(w, http.StatusOK, map[string]any{
					"status":           "trained",
					"source":           tt.source,
					"accuracy":         0.912,
					"training_samples": 1000,
					"timestamp":        "2026-10-18T10:00:00Z",
				})
			}))
			defer srv.Close()

			out, err := runCLI(t, srv, tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, "Trained "+tt.source+" model on 1000 samples, accuracy 0.912\n", out)
		})
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"INSUFFICIENT_DATA","message":"not enough labeled inspections"}}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, srv, "train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSUFFICIENT_DATA")
}

// ─── model ───

func TestModel(t *testing.T) {
	t.Run("loaded model", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/predict/model", r.URL.Path)
			envelope(w, http.StatusOK, map[string]any{
				"model_type":   "random_forest",
				"n_estimators": 100,
				"max_depth":    10,
				"loaded":       true,
				"model_id":     "6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b",
				"source":       "synthetic",
				"samples":      1000,
				"accuracy":     0.9,
				"trained_at":   "2026-10-18T10:00:00Z",
			})
		}))
		defer srv.Close()

		out, err := runCLI(t, srv, "model")
		require.NoError(t, err)
		assert.Contains(t, out, "random_forest (100 trees, depth 10)")
		assert.Contains(t, out, "6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b")
		assert.Contains(t, out, "2026-10-18T10:00:00Z")
	})

	t.Run("no model", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			envelope(w, http.StatusOK, map[string]any{"model_type": "random_forest", "loaded": false})
		}))
		defer srv.Close()

		out, err := runCLI(t, srv, "model")
		require.NoError(t, err)
		assert.Contains(t, out, "false")
		assert.NotContains(t, out, "Model ID")
	})
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := runCLI(t, srv, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}
