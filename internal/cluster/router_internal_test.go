package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ringstore/internal/metrics"
	"ringstore/internal/ring"
	"ringstore/internal/storage"
)

func TestSuccessorOf(t *testing.T) {
	a := ring.Node{ID: "a"}
	b := ring.Node{ID: "b"}
	c := ring.Node{ID: "c"}
	members := []ring.Member{{Position: 5, Node: a}, {Position: 17, Node: b}, {Position: 33, Node: c}}

	tests := []struct {
		pos  int
		want ring.Node
	}{
		{pos: 5, want: b},
		{pos: 17, want: c},
		{pos: 33, want: a},
	}
	for _, tt := range tests {
		got, ok := successorOf(members, tt.pos)
		if !ok || got != tt.want {
			t.Errorf("successorOf(%d) = %v, %v; want %v", tt.pos, got, ok, tt.want)
		}
	}

	if _, ok := successorOf(members[:1], 5); ok {
		t.Error("single member should have no successor")
	}
}

var errBoom = errors.New("boom")

// fakeNode is an in-memory StorageClient with injectable failures.
type fakeNode struct {
	mu         sync.Mutex
	files      map[string][]byte
	deletes    int
	failDelete int // fail the nth Delete call, counting from 1
	storeHook  func(path string) error
}

func newFakeNode(paths ...string) *fakeNode {
	f := &fakeNode{files: make(map[string][]byte)}
	for _, p := range paths {
		f.files[p] = []byte("content of " + p)
	}
	return f
}

func (f *fakeNode) Fetch(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return content, nil
}

func (f *fakeNode) Store(_ context.Context, path string, content []byte) error {
	if f.storeHook != nil {
		if err := f.storeHook(path); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
	return nil
}

func (f *fakeNode) List(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *fakeNode) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deletes == f.failDelete {
		return errBoom
	}
	if _, ok := f.files[path]; !ok {
		return storage.ErrNotFound
	}
	delete(f.files, path)
	return nil
}

func (f *fakeNode) paths() []string {
	paths, _ := f.List(context.Background())
	return paths
}

// Fixed slots: members a@10 and b@30, newcomers n@20 and m@40; x1..x3 and p
// fall between a and n, so b owns them until n joins.
var fakeSlots = map[string]int{
	"a": 10, "b": 30, "n": 20, "m": 40,
	"x1": 12, "x2": 14, "x3": 16, "p": 18,
}

var (
	fakeA = ring.Node{ID: "a", Addr: "a"}
	fakeB = ring.Node{ID: "b", Addr: "b"}
	fakeN = ring.Node{ID: "n", Addr: "n"}
)

func newFakeRouter(t *testing.T, nodes map[string]*fakeNode) *Router {
	t.Helper()

	r, err := ring.NewRing(50, ring.WithHashFunc(func(key string, _ int) int { return fakeSlots[key] }))
	require.NoError(t, err)
	dial := func(addr string) (StorageClient, error) {
		n, ok := nodes[addr]
		if !ok {
			return nil, fmt.Errorf("no storage node at %s", addr)
		}
		return n, nil
	}
	router := NewRouter(r, dial, zap.NewNop(), metrics.New())
	require.NoError(t, router.Bootstrap([]ring.Node{fakeA, fakeB}))
	return router
}

func TestRouter_JoinKeepsMembershipWhenCleanupFails(t *testing.T) {
	b := newFakeNode("x1", "x2", "x3")
	b.failDelete = 2
	nodes := map[string]*fakeNode{"a": newFakeNode(), "b": b, "n": newFakeNode()}
	router := newFakeRouter(t, nodes)
	ctx := context.Background()

	pos, err := router.Join(ctx, fakeN)
	require.ErrorIs(t, err, ErrCleanup)
	assert.NotErrorIs(t, err, ErrHandoff)
	assert.Equal(t, 20, pos)
	assert.Equal(t, 3, router.Ring().Len())

	for _, p := range []string{"x1", "x2", "x3"} {
		content, owner, err := router.Fetch(ctx, p)
		require.NoError(t, err, p)
		assert.Equal(t, fakeN, owner)
		assert.Equal(t, "content of "+p, string(content))
	}
	assert.Equal(t, []string{"x1", "x2", "x3"}, nodes["n"].paths())
	// Every delete is attempted; only the failed one is left behind.
	assert.Equal(t, []string{"x2"}, b.paths())
}

func TestRouter_UploadWaitsForJoin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	n := newFakeNode()
	n.storeHook = func(path string) error {
		if path != "x1" {
			return nil
		}
		close(entered)
		<-release
		return errBoom
	}
	nodes := map[string]*fakeNode{"a": newFakeNode(), "b": newFakeNode("x1"), "n": n}
	router := newFakeRouter(t, nodes)
	ctx := context.Background()

	joinErr := make(chan error, 1)
	go func() {
		_, err := router.Join(ctx, fakeN)
		joinErr <- err
	}()
	<-entered

	type result struct {
		owner ring.Node
		err   error
	}
	uploaded := make(chan result, 1)
	go func() {
		owner, err := router.Upload(ctx, "p", []byte("written during join"))
		uploaded <- result{owner: owner, err: err}
	}()

	select {
	case res := <-uploaded:
		t.Fatalf("upload finished while join was in progress: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.ErrorIs(t, <-joinErr, ErrHandoff)

	res := <-uploaded
	require.NoError(t, res.err)
	assert.Equal(t, fakeB, res.owner)

	content, owner, err := router.Fetch(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, fakeB, owner)
	assert.Equal(t, "written during join", string(content))
	assert.Empty(t, n.paths())
	assert.Equal(t, []string{"p", "x1"}, nodes["b"].paths())
}

func TestRouter_JoinRejectsDuplicateID(t *testing.T) {
	nodes := map[string]*fakeNode{"a": newFakeNode(), "b": newFakeNode("x1"), "n": newFakeNode(), "m": newFakeNode()}
	router := newFakeRouter(t, nodes)

	_, err := router.Join(context.Background(), ring.Node{ID: "a", Addr: "n"})
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 2, router.Ring().Len())
	assert.Equal(t, []string{"x1"}, nodes["b"].paths())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, addr := range []string{"n", "m"} {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			_, err := router.Join(context.Background(), ring.Node{ID: "dup", Addr: addr})
			errs <- err
		}(addr)
	}
	wg.Wait()
	close(errs)

	joined := 0
	for err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateID)
	}
	assert.Equal(t, 1, joined)
	assert.Equal(t, 3, router.Ring().Len())
}
