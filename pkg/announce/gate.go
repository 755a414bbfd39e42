// Package announce gates block announcements between the initial sync
// (where nothing should be broadcast) and live relay, and deduplicates
// publications of the same block id.
package announce

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

// DefaultDedupCacheSize bounds how many recently published block ids the
// gate remembers.
const DefaultDedupCacheSize = 4096

// Publisher is the narrow capability the gate needs from the pub-sub
// layer: broadcast a block to the Blocks topic.
type Publisher interface {
	PublishBlock(b *chain.Block) error
}

// Gate tracks whether initial block download has finished and
// deduplicates announcements so a block reached via more than one code
// path (e.g. a reorg that re-walks old tips) is only ever published once.
type Gate struct {
	mu       sync.Mutex
	ibdDone  bool
	dedup    *lru.Cache
	pub      Publisher
	onIBDone func()
}

// New returns a Gate in the "still syncing" state.
func New(pub Publisher, dedupCacheSize int, onIBDone func()) *Gate {
	if dedupCacheSize <= 0 {
		dedupCacheSize = DefaultDedupCacheSize
	}
	cache, err := lru.New(dedupCacheSize)
	if err != nil {
		// lru.New only errors for size <= 0, already guarded above.
		panic(err)
	}
	return &Gate{dedup: cache, pub: pub, onIBDone: onIBDone}
}

// MarkInitialBlockDownloadDone flips the gate open. It is idempotent:
// onIBDone fires at most once, the first time this is called.
func (g *Gate) MarkInitialBlockDownloadDone() {
	g.mu.Lock()
	already := g.ibdDone
	g.ibdDone = true
	g.mu.Unlock()

	if !already && g.onIBDone != nil {
		g.onIBDone()
	}
}

// IsInitialBlockDownloadDone reports the gate's current state.
func (g *Gate) IsInitialBlockDownloadDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ibdDone
}

// Announce publishes b on the Blocks topic iff the gate is open and this
// block id hasn't already been announced.
func (g *Gate) Announce(b *chain.Block) error {
	g.mu.Lock()
	if !g.ibdDone {
		g.mu.Unlock()
		return nil
	}
	id := b.ID()
	if _, seen := g.dedup.Get(id); seen {
		g.mu.Unlock()
		return nil
	}
	g.dedup.Add(id, struct{}{})
	g.mu.Unlock()

	return g.pub.PublishBlock(b)
}
