package syncmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stanislav-tkach/mintlayer-core/internal/fakechain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/announce"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

// noopPublisher discards every announcement; these scenarios only care
// about tip convergence, not what gets broadcast.
type noopPublisher struct{}

func (noopPublisher) PublishBlock(*chain.Block) error { return nil }

// extendFork is extendChain with every block time offset by salt, so a
// chain extended from a shared tip forms its own branch instead of
// rebuilding the same blocks extendChain would.
func extendFork(t *testing.T, fc *fakechain.FakeChain, n int, salt uint32) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		tip, err := fc.BestBlockID(ctx)
		require.NoError(t, err)
		b := &chain.Block{Header: chain.BlockHeader{Prev: tip, Time: salt + uint32(i+1)}}
		_, err = fc.ProcessBlock(ctx, b, chainstate.SourceLocal)
		require.NoError(t, err)
	}
}

func newTestManager(t *testing.T, ch chainstate.Handle) *Manager {
	t.Helper()
	gate := announce.New(noopPublisher{}, 64, func() {})
	return New(zaptest.NewLogger(t), ch, gate, nil, DefaultOptions(), nil)
}

// TestInSyncNoTraffic covers scenario 1: both sides already share the same
// tip, so the only round trip is a GetHeaders answered with no novelty, and
// the manager settles into Idle with IBD marked done.
func TestInSyncNoTraffic(t *testing.T) {
	remote := fakechain.NewFakeChain()
	extendChain(t, remote, 8)

	local := fakechain.NewFakeChain()
	extendChain(t, local, 8)

	localTip, err := local.BestBlockID(context.Background())
	require.NoError(t, err)
	remoteTip, err := remote.BestBlockID(context.Background())
	require.NoError(t, err)
	require.Equal(t, remoteTip, localTip, "test setup: both chains must share a tip")

	localHandle, remoteHandle := transport.NewLocalPair("local", "remote")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go runRemoteResponder(ctx, remoteHandle, remote)

	mgr := newTestManager(t, local)
	go func() { _ = mgr.Run(ctx) }()

	require.NoError(t, mgr.RegisterPeer(ctx, "remote", localHandle))

	require.Eventually(t, func() bool {
		return mgr.State() == Idle
	}, 2*time.Second, 10*time.Millisecond)

	tip, err := local.BestBlockID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, localTip, tip, "tip must not move when there is no novelty")
}

// TestLocalAheadRemoteUnaffected covers scenario 3 from the taller side's
// point of view: the manager's own chain is already ahead of the peer it
// connects to. The peer here only answers requests and never pulls, so the
// test checks that syncing against a shorter peer leaves the manager's own
// tip where it was.
func TestLocalAheadRemoteUnaffected(t *testing.T) {
	local := fakechain.NewFakeChain()
	extendChain(t, local, 20)
	localTip, err := local.BestBlockID(context.Background())
	require.NoError(t, err)

	remote := fakechain.NewFakeChain()
	extendChain(t, remote, 8)

	localHandle, remoteHandle := transport.NewLocalPair("local", "remote")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go runRemoteResponder(ctx, remoteHandle, remote)

	mgr := newTestManager(t, local)
	go func() { _ = mgr.Run(ctx) }()

	require.NoError(t, mgr.RegisterPeer(ctx, "remote", localHandle))

	require.Eventually(t, func() bool {
		return mgr.State() == Idle
	}, 2*time.Second, 10*time.Millisecond)

	tip, err := local.BestBlockID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, localTip, tip, "a taller local chain must not be reorged by a shorter peer")
}

// twoManagerPair wires two real Managers directly to each other over a
// single Local pair, each syncing the other concurrently, for the divergent-
// chain scenarios where both sides actively pull.
func twoManagerPair(t *testing.T, a, b *fakechain.FakeChain) (mgrA, mgrB *Manager, ctx context.Context, cancel func()) {
	t.Helper()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

	handleA, handleB := transport.NewLocalPair("a", "b")
	mgrA = newTestManager(t, a)
	mgrB = newTestManager(t, b)

	go func() { _ = mgrA.Run(ctx) }()
	go func() { _ = mgrB.Run(ctx) }()

	require.NoError(t, mgrA.RegisterPeer(ctx, "b", handleA))
	require.NoError(t, mgrB.RegisterPeer(ctx, "a", handleB))
	return mgrA, mgrB, ctx, cancel
}

// TestDivergentChainsLocalWins covers scenario 4: both sides start level,
// then diverge onto different branches; the branch with more work wins on
// both ends once they resync.
func TestDivergentChainsLocalWins(t *testing.T) {
	a := fakechain.NewFakeChain()
	extendChain(t, a, 8)
	b := fakechain.NewFakeChain()
	extendChain(t, b, 8)

	extendChain(t, a, 14) // chain A, taller
	extendFork(t, b, 7, 1000) // chain B, shorter

	aTip, err := a.BestBlockID(context.Background())
	require.NoError(t, err)

	_, _, ctx, cancel := twoManagerPair(t, a, b)
	defer cancel()

	require.Eventually(t, func() bool {
		bTip, err := b.BestBlockID(context.Background())
		return err == nil && bTip == aTip
	}, 4*time.Second, 10*time.Millisecond)

	finalATip, err := a.BestBlockID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, aTip, finalATip, "the taller side's own tip must not move")
	_ = ctx
}

// TestDivergentChainsRemoteWins covers scenario 5: the mirror of scenario 4,
// with the taller branch on the other side.
func TestDivergentChainsRemoteWins(t *testing.T) {
	a := fakechain.NewFakeChain()
	extendChain(t, a, 8)
	b := fakechain.NewFakeChain()
	extendChain(t, b, 8)

	extendChain(t, a, 5)  // chain A, shorter
	extendFork(t, b, 12, 1000) // chain B, taller

	bTip, err := b.BestBlockID(context.Background())
	require.NoError(t, err)

	_, _, ctx, cancel := twoManagerPair(t, a, b)
	defer cancel()

	require.Eventually(t, func() bool {
		aTip, err := a.BestBlockID(context.Background())
		return err == nil && aTip == bTip
	}, 4*time.Second, 10*time.Millisecond)

	finalBTip, err := b.BestBlockID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bTip, finalBTip, "the taller side's own tip must not move")
	_ = ctx
}

// TestTwoRemotesDisjointChainsChoosesLonger covers scenario 6: a single
// local manager registers two peers on disjoint branches of differing
// length and converges onto the longer one, leaving the shorter peer's
// chain untouched.
func TestTwoRemotesDisjointChainsChoosesLonger(t *testing.T) {
	local := fakechain.NewFakeChain()
	extendChain(t, local, 8)

	r2 := fakechain.NewFakeChain()
	extendChain(t, r2, 8)
	extendChain(t, r2, 5) // chain X

	r3 := fakechain.NewFakeChain()
	extendChain(t, r3, 8)
	extendFork(t, r3, 7, 1000) // chain Y, longer

	r2Tip, err := r2.BestBlockID(context.Background())
	require.NoError(t, err)
	r3Tip, err := r3.BestBlockID(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h2Local, h2Remote := transport.NewLocalPair("local", "r2")
	h3Local, h3Remote := transport.NewLocalPair("local", "r3")
	go runRemoteResponder(ctx, h2Remote, r2)
	go runRemoteResponder(ctx, h3Remote, r3)

	mgr := newTestManager(t, local)
	go func() { _ = mgr.Run(ctx) }()

	require.NoError(t, mgr.RegisterPeer(ctx, "r2", h2Local))
	require.NoError(t, mgr.RegisterPeer(ctx, "r3", h3Local))

	require.Eventually(t, func() bool {
		tip, err := local.BestBlockID(context.Background())
		return err == nil && tip == r3Tip
	}, 4*time.Second, 10*time.Millisecond)

	finalR2Tip, err := r2.BestBlockID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r2Tip, finalR2Tip, "the shorter peer's own chain must be untouched")
}

// TestDisconnectAndResync covers scenario 7: after an initial sync to
// parity, the peer is unregistered, the remote advances further, and a
// fresh registration picks up where the previous one left off.
func TestDisconnectAndResync(t *testing.T) {
	remote := fakechain.NewFakeChain()
	extendChain(t, remote, 8)
	local := fakechain.NewFakeChain()
	extendChain(t, local, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	localHandle, remoteHandle := transport.NewLocalPair("local", "remote")
	go runRemoteResponder(ctx, remoteHandle, remote)

	mgr := newTestManager(t, local)
	go func() { _ = mgr.Run(ctx) }()

	require.NoError(t, mgr.RegisterPeer(ctx, "remote", localHandle))
	require.Eventually(t, func() bool {
		return mgr.State() == Idle
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mgr.UnregisterPeer(ctx, "remote"))
	localHandle.Close()

	newIDs := extendChain(t, remote, 7)

	newLocalHandle, newRemoteHandle := transport.NewLocalPair("local", "remote")
	go runRemoteResponder(ctx, newRemoteHandle, remote)
	require.NoError(t, mgr.RegisterPeer(ctx, "remote", newLocalHandle))

	require.Eventually(t, func() bool {
		tip, err := local.BestBlockID(context.Background())
		return err == nil && tip == newIDs[len(newIDs)-1]
	}, 4*time.Second, 10*time.Millisecond)
}
