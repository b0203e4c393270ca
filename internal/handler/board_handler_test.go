package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"openbci-service/internal/config"
	"openbci-service/internal/model"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Board.Simulate = true
	cfg.Board.WriteDelay = time.Millisecond
	cfg.Board.ResetDelay = 5 * time.Millisecond
	cfg.Board.Simulator.Speed = 4
	cfg.Stream.PingInterval = time.Second
	return cfg
}

func newTestEngine(t *testing.T) (*gin.Engine, *service.BoardService, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	bs := service.NewBoardService(cfg, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		bs.Shutdown(ctx)
	})

	engine := gin.New()
	NewBoardHandler(bs, zap.NewNop()).RegisterRoutes(engine.Group("/api/v1"))
	return engine, bs, cfg
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body interface{}) (int, utils.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp utils.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

func TestBoardCommandsWithoutConnection(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	tests := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{http.MethodGet, "/api/v1/board", nil, http.StatusOK},
		{http.MethodPost, "/api/v1/board/disconnect", nil, http.StatusConflict},
		{http.MethodPost, "/api/v1/board/stream/start", nil, http.StatusConflict},
		{http.MethodPost, "/api/v1/board/pause", nil, http.StatusConflict},
		{http.MethodGet, "/api/v1/board/impedance", nil, http.StatusConflict},
		{http.MethodPost, "/api/v1/board/channels/abc/on", nil, http.StatusBadRequest},
		{http.MethodPut, "/api/v1/board/channels/1", map[string]interface{}{"gain": 24, "input": "bogus"}, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/board/impedance/start", map[string]interface{}{}, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/board/connect", map[string]interface{}{"board_type": "octopus"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		code, resp := doRequest(t, engine, tt.method, tt.path, tt.body)
		if code != tt.want {
			t.Errorf("%s %s = %d, want %d (%+v)", tt.method, tt.path, code, tt.want, resp.Error)
		}
		if (code == http.StatusOK) != resp.Success {
			t.Errorf("%s %s: success = %v with status %d", tt.method, tt.path, resp.Success, code)
		}
	}
}

func TestConnectSimulatedAndImpedance(t *testing.T) {
	engine, bs, _ := newTestEngine(t)

	code, resp := doRequest(t, engine, http.MethodPost, "/api/v1/board/connect", nil)
	if code != http.StatusOK {
		t.Fatalf("connect = %d (%+v)", code, resp.Error)
	}

	code, _ = doRequest(t, engine, http.MethodPost, "/api/v1/board/connect", nil)
	if code != http.StatusConflict {
		t.Errorf("second connect = %d, want %d", code, http.StatusConflict)
	}

	deadline := time.Now().Add(3 * time.Second)
	for bs.Status().Stats.State != model.BoardStateStreaming {
		if time.Now().After(deadline) {
			t.Fatalf("board never reached streaming, state %s", bs.Status().Stats.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	code, resp = doRequest(t, engine, http.MethodPost, "/api/v1/board/channels/9/off", nil)
	if code != http.StatusBadRequest {
		t.Errorf("channel 9 off = %d, want %d (%+v)", code, http.StatusBadRequest, resp.Error)
	}

	code, resp = doRequest(t, engine, http.MethodPut, "/api/v1/board/channels/2",
		map[string]interface{}{"gain": 8, "input": "shorted", "srb2": true})
	if code != http.StatusOK {
		t.Errorf("set channel = %d (%+v)", code, resp.Error)
	}

	code, resp = doRequest(t, engine, http.MethodPost, "/api/v1/board/impedance/start",
		map[string]interface{}{"channel": 1})
	if code != http.StatusOK {
		t.Fatalf("impedance start = %d (%+v)", code, resp.Error)
	}

	code, resp = doRequest(t, engine, http.MethodGet, "/api/v1/board/impedance", nil)
	if code != http.StatusOK {
		t.Fatalf("impedance = %d (%+v)", code, resp.Error)
	}
	raw, _ := json.Marshal(resp.Data)
	var imp ImpedanceResponse
	if err := json.Unmarshal(raw, &imp); err != nil {
		t.Fatalf("decode impedance data: %v", err)
	}
	if imp.Mode != model.ImpedanceModeSingle {
		t.Errorf("mode = %s, want %s", imp.Mode, model.ImpedanceModeSingle)
	}

	code, _ = doRequest(t, engine, http.MethodPost, "/api/v1/board/disconnect", nil)
	if code != http.StatusOK {
		t.Errorf("disconnect = %d", code)
	}
}

func TestNewImpedanceResponse(t *testing.T) {
	resp := NewImpedanceResponse(model.ImpedanceModeContinuous, []model.ImpedanceValue{
		{Channel: 1, Ohms: 12345.678},
		{Channel: 2, Ohms: 7_500_000},
	})

	if len(resp.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(resp.Readings))
	}
	if got := resp.Readings[0].KiloOhms.String(); got != "12.35" {
		t.Errorf("channel 1 kOhm = %s, want 12.35", got)
	}
	if !resp.Readings[0].Connected {
		t.Error("channel 1 should be connected")
	}
	if resp.Readings[1].Connected {
		t.Error("channel 2 should be reported as an open lead")
	}
}
