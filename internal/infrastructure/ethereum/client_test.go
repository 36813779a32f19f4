package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// rpcNode answers eth_chainId, optionally holding each request until release
type rpcNode struct {
	chainID  string
	hold     chan struct{}
	started  chan struct{}
	once     sync.Once
	requests atomic.Int32
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.requests.Add(1)

	if n.hold != nil {
		n.once.Do(func() { close(n.started) })
		select {
		case <-n.hold:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  n.chainID,
	})
}

func TestPoolDialDoesNotBlockOtherChains(t *testing.T) {
	slow := &rpcNode{chainID: "0x1", hold: make(chan struct{}), started: make(chan struct{})}
	slowSrv := httptest.NewServer(slow)
	defer slowSrv.Close()

	fastSrv := httptest.NewServer(&rpcNode{chainID: "0x38"})
	defer fastSrv.Close()

	chains := entities.NewChainRegistry(entities.DefaultChains())
	chains.SetRPCURL(entities.ChainEthereum, slowSrv.URL)
	chains.SetRPCURL(entities.ChainBSC, fastSrv.URL)
	pool := NewPool(chains)
	defer pool.Close()

	firstDone := make(chan error, 1)
	go func() {
		_, err := pool.Get(context.Background(), entities.ChainEthereum)
		firstDone <- err
	}()

	select {
	case <-slow.started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow node never received a request")
	}

	// an unrelated chain dials while the first one is stuck
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bsc, err := pool.Get(ctx, entities.ChainBSC)
	require.NoError(t, err)
	assert.Equal(t, entities.ChainBSC, bsc.ChainID().Int64())

	// a second caller for the stuck chain gives up on its own deadline
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	_, err = pool.Get(shortCtx, entities.ChainEthereum)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(slow.hold)
	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first dial never finished")
	}

	// the shared dial served both callers and is now cached
	c, err := pool.Get(context.Background(), entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, entities.ChainEthereum, c.ChainID().Int64())
	assert.Equal(t, int32(1), slow.requests.Load())
}

func TestPoolRejectsMismatchedChainID(t *testing.T) {
	srv := httptest.NewServer(&rpcNode{chainID: "0x89"})
	defer srv.Close()

	chains := entities.NewChainRegistry(entities.DefaultChains())
	chains.SetRPCURL(entities.ChainEthereum, srv.URL)
	pool := NewPool(chains)
	defer pool.Close()

	_, err := pool.Get(context.Background(), entities.ChainEthereum)
	assert.ErrorContains(t, err, "reports chain id 137")
}
