package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ringstore/internal/cluster"
	"ringstore/internal/it"
	"ringstore/internal/metrics"
	"ringstore/internal/ring"
)

// Slots with 50 positions: A=1 B=18 E=30 G=27.
var (
	nodeA = ring.Node{ID: "A", Addr: "239.67.52.72"}
	nodeB = ring.Node{ID: "B", Addr: "137.70.131.229"}
	nodeE = ring.Node{ID: "E", Addr: "203.187.116.210"}
	nodeG = ring.Node{ID: "G", Addr: "27.161.219.131"}
)

func newTestServer(t *testing.T, members ...ring.Node) (*httptest.Server, *it.Cluster) {
	t.Helper()

	c := it.NewCluster(zap.NewNop())
	t.Cleanup(c.Stop)
	require.NoError(t, c.StartNodes(nodeA, nodeB, nodeE, nodeG))

	r, err := ring.NewRing(ring.DefaultSlots)
	require.NoError(t, err)
	m := metrics.New()
	router := cluster.NewRouter(r, cluster.NodeDialer(c.Clients()), zap.NewNop(), m)
	require.NoError(t, router.Bootstrap(members))

	srv := httptest.NewServer(NewHandler(router, m, zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv, c
}

func do(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleRing(t *testing.T) {
	srv, _ := newTestServer(t, nodeE, nodeA, nodeB)

	resp := do(t, http.MethodGet, srv.URL+"/ring", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ringResponse
	decode(t, resp, &body)
	assert.Equal(t, 50, body.SlotCount)
	assert.Equal(t, []memberResponse{
		{Position: 1, ID: "A", Addr: nodeA.Addr},
		{Position: 18, ID: "B", Addr: nodeB.Addr},
		{Position: 30, ID: "E", Addr: nodeE.Addr},
	}, body.Members)
}

func TestHandleLocate(t *testing.T) {
	srv, _ := newTestServer(t, nodeA, nodeB, nodeE)

	resp := do(t, http.MethodGet, srv.URL+"/locate/f1.txt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body locateResponse
	decode(t, resp, &body)
	assert.Equal(t, "f1.txt", body.Item)
	assert.Equal(t, 29, body.Slot)
	assert.Equal(t, 30, body.Position)
	assert.Equal(t, "E", body.Node.ID)
}

func TestHandleLocate_EmptyRing(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/locate/f1.txt", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleFiles(t *testing.T) {
	srv, c := newTestServer(t, nodeA, nodeB, nodeE)

	resp := do(t, http.MethodPut, srv.URL+"/files/dir/f1.txt", []byte("hello"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	owner := resp.Header.Get("X-Ringstore-Node")
	require.NotEmpty(t, owner)

	resp = do(t, http.MethodGet, srv.URL+"/files/dir/f1.txt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, owner, resp.Header.Get("X-Ringstore-Node"))
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Equal(t, "hello", buf.String())

	stored := 0
	for _, n := range []ring.Node{nodeA, nodeB, nodeE} {
		stored += c.GetNode(n.Addr).Store().Len()
	}
	assert.Equal(t, 1, stored)

	resp = do(t, http.MethodGet, srv.URL+"/files/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleJoinLeave(t *testing.T) {
	srv, c := newTestServer(t, nodeA, nodeB, nodeE)

	// f5.txt hashes to 25 and lives on E until G (27) joins.
	resp := do(t, http.MethodPut, srv.URL+"/files/f5.txt", []byte("five"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "E", resp.Header.Get("X-Ringstore-Node"))

	payload, _ := json.Marshal(nodeRequest{ID: "G", Addr: nodeG.Addr})
	resp = do(t, http.MethodPost, srv.URL+"/nodes", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var joined positionResponse
	decode(t, resp, &joined)
	assert.Equal(t, 27, joined.Position)
	assert.Equal(t, []string{"f5.txt"}, c.GetNode(nodeG.Addr).Store().List())

	resp = do(t, http.MethodPost, srv.URL+"/nodes", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Same ID as G on a free slot is still rejected.
	resp = do(t, http.MethodPost, srv.URL+"/nodes", []byte(`{"id":"G","addr":"10.0.0.16"}`))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/nodes/G", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var left positionResponse
	decode(t, resp, &left)
	assert.Equal(t, 27, left.Position)
	assert.Equal(t, []string{"f5.txt"}, c.GetNode(nodeE.Addr).Store().List())

	resp = do(t, http.MethodDelete, srv.URL+"/nodes/G", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleUpload_BodyErrors(t *testing.T) {
	// Both bodies fail before the router is consulted.
	routes := NewHandler(nil, metrics.New(), zap.NewNop()).Routes()

	tests := []struct {
		name string
		body io.Reader
		want int
	}{
		{name: "over limit", body: bytes.NewReader(make([]byte, MaxUploadSize+1)), want: http.StatusRequestEntityTooLarge},
		{name: "read error", body: iotest.ErrReader(errors.New("connection reset")), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/files/upload.bin", tt.body))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleJoin_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t, nodeA)

	resp := do(t, http.MethodPost, srv.URL+"/nodes", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/nodes", []byte(`{"id":"x"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Same address as A: slot collision.
	resp = do(t, http.MethodPost, srv.URL+"/nodes", []byte(`{"id":"x","addr":"239.67.52.72"}`))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nodeA, nodeB)

	do(t, http.MethodGet, srv.URL+"/locate/f1.txt", nil)
	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	body := buf.String()
	assert.True(t, strings.Contains(body, "ring_members 2"), body)
	assert.True(t, strings.Contains(body, `ring_resolves_total{result="ok"} 1`), body)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInsufficientStorage, statusFor(ring.ErrCapacityExceeded))
	assert.Equal(t, http.StatusNotFound, statusFor(ring.ErrNodeNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(cluster.ErrHandoff))
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("join G: %w", cluster.ErrDuplicateID)))
}
