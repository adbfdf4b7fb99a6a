package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sxyafiq/seqgen"
	"github.com/sxyafiq/seqgen/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClock struct {
	ms atomic.Int64
}

func (c *fakeClock) Now() int64 { return c.ms.Load() }

func newTestServer(t *testing.T, nodeID int64, clock seqgen.Clock) *Server {
	t.Helper()
	genCfg := seqgen.DefaultConfig()
	genCfg.NodeID = nodeID
	genCfg.Clock = clock
	gen, err := seqgen.NewWithConfig(genCfg)
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.HTTPAddress = "127.0.0.1:0"
	cfg.MaxBatch = 100
	s, err := NewServer(cfg, gen, nil)
	require.NoError(t, err)
	t.Cleanup(s.Exit)
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestMintIDs(t *testing.T) {
	s := newTestServer(t, 12, nil)

	w := get(t, s, "/v1/ids?count=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var body struct {
		IDs []seqgen.ID `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.IDs, 5)
	for i, id := range body.IDs {
		assert.Equal(t, int64(12), id.NodeID())
		if i > 0 {
			assert.True(t, body.IDs[i-1].Before(id))
		}
	}
}

func TestMintIDsDefaultsAndFormats(t *testing.T) {
	s := newTestServer(t, 1, nil)

	w := get(t, s, "/v1/ids")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.IDs, 1)

	w = get(t, s, "/v1/ids?count=2&format=hex")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, encoded := range body.IDs {
		id, err := seqgen.ParseHex(encoded)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id.NodeID())
	}
}

func TestMintIDsBadRequest(t *testing.T) {
	s := newTestServer(t, 1, nil)

	for _, target := range []string{
		"/v1/ids?count=0",
		"/v1/ids?count=-3",
		"/v1/ids?count=101",
		"/v1/ids?count=ten",
		"/v1/ids?format=base64",
	} {
		w := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestMintIDsClockRegression(t *testing.T) {
	clock := &fakeClock{}
	clock.ms.Store(1760000000000)
	s := newTestServer(t, 4, clock.Now)

	require.Equal(t, http.StatusOK, get(t, s, "/v1/ids").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)

	clock.ms.Store(1760000000000 - 20)
	w := get(t, s, "/v1/ids")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Error   string `json:"error"`
		DriftMs int64  `json:"driftMs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(20), body.DriftMs)
	assert.Contains(t, body.Error, "clock moved backwards")

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/healthz").Code)
}

func TestDecodeID(t *testing.T) {
	s := newTestServer(t, 1, nil)
	id := seqgen.ID(((1760000000000 - seqgen.Epoch) << seqgen.TimestampShift) | (300 << seqgen.NodeIDShift) | 9)

	for _, form := range []string{id.String(), id.Base62()} {
		w := get(t, s, "/v1/ids/"+form)
		require.Equal(t, http.StatusOK, w.Code, form)

		var body struct {
			ID        seqgen.ID `json:"id"`
			Timestamp int64     `json:"timestamp"`
			NodeID    int64     `json:"nodeID"`
			Sequence  int64     `json:"sequence"`
			Hex       string    `json:"hex"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, id, body.ID)
		assert.Equal(t, int64(1760000000000), body.Timestamp)
		assert.Equal(t, int64(300), body.NodeID)
		assert.Equal(t, int64(9), body.Sequence)
		assert.Equal(t, id.Hex(), body.Hex)
	}

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/ids/not!valid").Code)
}

func TestDecodeMintedBase58(t *testing.T) {
	s := newTestServer(t, 5, nil)

	w := get(t, s, "/v1/ids?count=3&format=base58")
	require.Equal(t, http.StatusOK, w.Code)
	var minted struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &minted))
	require.Len(t, minted.IDs, 3)

	for _, encoded := range minted.IDs {
		want, err := seqgen.ParseBase58(encoded)
		require.NoError(t, err)

		w := get(t, s, "/v1/ids/"+encoded+"?encoding=base58")
		require.Equal(t, http.StatusOK, w.Code, encoded)

		var body struct {
			ID     seqgen.ID `json:"id"`
			NodeID int64     `json:"nodeID"`
			Time   string    `json:"time"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, want, body.ID)
		assert.Equal(t, int64(5), body.NodeID)

		mintedAt, err := time.Parse(time.RFC3339Nano, body.Time)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), mintedAt, time.Minute)
	}

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/ids/"+minted.IDs[0]+"?encoding=base64").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/ids/0OIl?encoding=base58").Code)
}

func TestNode(t *testing.T) {
	s := newTestServer(t, 1023, nil)

	w := get(t, s, "/v1/node")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		NodeID int64  `json:"nodeID"`
		Origin string `json:"origin"`
		Layout struct {
			NodeIDBits        int    `json:"nodeIDBits"`
			IDsPerMillisecond int64  `json:"idsPerMillisecond"`
			SignedOverflow    string `json:"signedOverflow"`
		} `json:"layout"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1023), body.NodeID)
	assert.Equal(t, "pinned", body.Origin)
	assert.Equal(t, 10, body.Layout.NodeIDBits)
	assert.Equal(t, int64(4096), body.Layout.IDsPerMillisecond)
	assert.True(t, strings.HasPrefix(body.Layout.SignedOverflow, "2084-09-06"))
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, 5, nil)
	get(t, s, "/v1/ids?count=3")

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	text := w.Body.String()
	assert.Contains(t, text, "# TYPE seqgen_ids_generated_total counter")
	assert.Contains(t, text, `seqgen_ids_generated_total{node="5"} 3`)
	assert.Contains(t, text, `seqgen_clock_regressions_total{node="5"} 0`)
	assert.Contains(t, text, `seqgen_node_info{node="5",origin="pinned"} 1`)
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, 1, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-abc")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "trace-abc", w.Header().Get(requestIDHeader))
}

func TestMainExit(t *testing.T) {
	s := newTestServer(t, 1, nil)

	done := make(chan error, 1)
	go func() { done <- s.Main() }()

	url := "http://" + s.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	s.Exit()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Main did not return after Exit")
	}
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	gen, err := seqgen.NewWithNodeID(1)
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.HTTPAddress = "127.0.0.1:0"
	cfg.MaxBatch = 0
	_, err = NewServer(cfg, gen, nil)
	assert.Error(t, err)

	_, err = NewServer(config.NewConfig(), nil, nil)
	assert.Error(t, err)
}
