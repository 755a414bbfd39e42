package syncmgr

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
	"github.com/stanislav-tkach/mintlayer-core/pkg/peer"
	"github.com/stanislav-tkach/mintlayer-core/pkg/reqtrack"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

func (m *Manager) handleEvent(ctx context.Context, id transport.PeerID, ev transport.Event) {
	switch {
	case ev.PeerUp != nil:
		// A transport-level connectivity signal for a peer already
		// registered by RegisterPeer; nothing further to do here, header
		// sync was already kicked off at registration time.
	case ev.PeerDown != nil:
		m.dropPeer(id)
	case ev.Request != nil:
		m.handleRequest(ctx, id, *ev.Request)
	case ev.Response != nil:
		m.handleResponse(ctx, id, *ev.Response)
	case ev.Err != nil:
		m.handleError(ctx, id, *ev.Err)
	case ev.Block != nil:
		m.handleAnnouncedBlock(ctx, id, *ev.Block)
	}
}

// beginHeaderSync sends a fresh GetHeaders built from the local chain's
// locator, transitioning the peer into UploadingHeaders.
func (m *Manager) beginHeaderSync(ctx context.Context, id transport.PeerID) error {
	rec, ok := m.peers[id]
	if !ok {
		return ErrNotRegistered
	}
	locator, err := chain.BuildLocator(ctx, chainReaderAdapter{m.chain})
	if err != nil {
		return err
	}
	if err := rec.state.BeginHeaders(locator); err != nil {
		return err
	}
	reqID, err := rec.handle.SendRequest(ctx, id, transport.SyncingMessage{GetHeaders: &transport.GetHeaders{Locator: locator}})
	if err != nil {
		return err
	}
	m.tracker.Record(reqID, id, reqtrack.Kind{Tag: reqtrack.KindGetHeaders})
	return nil
}

func (m *Manager) handleRequest(ctx context.Context, id transport.PeerID, req transport.RequestEvent) {
	rec, ok := m.peers[id]
	if !ok {
		return
	}
	switch {
	case req.Message.GetHeaders != nil:
		hdrs, err := m.answerGetHeaders(ctx, req.Message.GetHeaders.Locator)
		if err != nil {
			m.log.Warn("syncmgr: answering GetHeaders failed", zap.String("peer", string(id)), zap.Error(err))
			return
		}
		if err := rec.handle.SendResponse(ctx, req.RequestID, transport.SyncingMessage{Headers: &transport.Headers{Headers: hdrs}}); err != nil {
			m.log.Warn("syncmgr: sending Headers response failed", zap.Error(err))
		}
	case req.Message.GetBlocks != nil:
		blocks, err := m.answerGetBlocks(ctx, req.Message.GetBlocks.BlockIDs)
		if err != nil {
			m.log.Warn("syncmgr: answering GetBlocks failed", zap.String("peer", string(id)), zap.Error(err))
			return
		}
		if err := rec.handle.SendResponse(ctx, req.RequestID, transport.SyncingMessage{Blocks: &transport.Blocks{Blocks: blocks}}); err != nil {
			m.log.Warn("syncmgr: sending Blocks response failed", zap.Error(err))
		}
	}
}

func (m *Manager) answerGetHeaders(ctx context.Context, locator []chain.BlockID) ([]chain.BlockHeader, error) {
	tip, err := m.chain.BestBlockID(ctx)
	if err != nil {
		return nil, err
	}
	from := chain.BlockID{}
	for _, id := range locator {
		known, err := m.chain.HasHeader(ctx, id)
		if err != nil {
			return nil, err
		}
		if !known {
			continue
		}
		// Only a main-chain entry anchors the reply: the main-chain header
		// after it must link back to it, unless it is the tip itself.
		next, err := m.chain.GetHeaders(ctx, id, 1)
		if err != nil {
			return nil, err
		}
		if (len(next) > 0 && next[0].Prev == id) || (len(next) == 0 && id == tip) {
			from = id
			break
		}
	}
	return m.chain.GetHeaders(ctx, from, m.opts.MaxHeadersPerMessage)
}

func (m *Manager) answerGetBlocks(ctx context.Context, ids []chain.BlockID) ([]chain.Block, error) {
	blocks := make([]chain.Block, 0, len(ids))
	for _, id := range ids {
		b, err := m.chain.GetBlock(ctx, id)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, nil
}

func (m *Manager) handleResponse(ctx context.Context, id transport.PeerID, resp transport.ResponseEvent) {
	rec, ok := m.peers[id]
	if !ok {
		return
	}
	if _, err := m.tracker.OnResponse(resp.RequestID); err != nil {
		m.log.Debug("syncmgr: response for untracked request", zap.String("peer", string(id)))
	}

	switch {
	case resp.Message.Headers != nil:
		m.handleHeadersResponse(ctx, id, rec, resp.Message.Headers.Headers)
	case resp.Message.Blocks != nil:
		m.handleBlocksResponse(ctx, id, rec, resp.Message.Blocks.Blocks)
	}
}

func (m *Manager) handleHeadersResponse(ctx context.Context, id transport.PeerID, rec *peerRecord, hdrs []chain.BlockHeader) {
	if len(hdrs) == 0 {
		rec.state.CompleteHeadersNoNovelty()
		return
	}

	novel, err := chain.FilterUnknown(ctx, chainReaderAdapter{m.chain}, hdrs)
	if err != nil {
		m.log.Warn("syncmgr: peer sent unconnected headers, disconnecting", zap.String("peer", string(id)), zap.Error(err))
		m.dropMisbehaving(id, err)
		return
	}
	if len(novel) == 0 {
		rec.state.CompleteHeadersNoNovelty()
		return
	}

	ids := make([]chain.BlockID, 0, len(novel))
	for i := range novel {
		if err := m.chain.ProcessHeader(ctx, &novel[i]); err != nil {
			m.log.Warn("syncmgr: ProcessHeader rejected peer header, disconnecting", zap.String("peer", string(id)), zap.Error(err))
			m.dropMisbehaving(id, err)
			return
		}
		ids = append(ids, novel[i].ID())
		if m.metrics != nil {
			m.metrics.HeadersProcessedTotal.Inc()
		}
	}
	rec.state.SetDeclaredTip(ids[len(ids)-1])

	if err := rec.state.BeginBlocks(ids); err != nil {
		m.log.Warn("syncmgr: BeginBlocks failed", zap.Error(err))
		return
	}
	m.requestNextBlock(ctx, id, rec)
}

func (m *Manager) requestNextBlock(ctx context.Context, id transport.PeerID, rec *peerRecord) {
	want := rec.state.ExpectedBlock()
	reqID, err := rec.handle.SendRequest(ctx, id, transport.SyncingMessage{GetBlocks: &transport.GetBlocks{BlockIDs: []chain.BlockID{want}}})
	if err != nil {
		m.log.Warn("syncmgr: sending GetBlocks failed", zap.String("peer", string(id)), zap.Error(err))
		return
	}
	m.tracker.Record(reqID, id, reqtrack.Kind{Tag: reqtrack.KindGetBlocks, BlockIDs: []chain.BlockID{want}})
}

func (m *Manager) handleBlocksResponse(ctx context.Context, id transport.PeerID, rec *peerRecord, blocks []chain.Block) {
	if rec.state.Kind() != peer.UploadingBlocks {
		return
	}
	want := rec.state.ExpectedBlock()
	var got *chain.Block
	for i := range blocks {
		if blocks[i].ID() == want {
			got = &blocks[i]
			break
		}
	}
	if got == nil {
		reason := fmt.Errorf("syncmgr: peer did not send the requested block %s", want)
		m.log.Warn("syncmgr: peer sent a block we didn't request, disconnecting", zap.String("peer", string(id)))
		m.dropMisbehaving(id, reason)
		return
	}

	becameNewTip, err := m.chain.ProcessBlock(ctx, got, chainstate.SourcePeer)
	if err != nil {
		m.log.Warn("syncmgr: block rejected by chainstate, disconnecting", zap.String("peer", string(id)), zap.Error(err))
		m.dropMisbehaving(id, err)
		return
	}
	if m.metrics != nil {
		m.metrics.BlocksProcessedTotal.Inc()
	}
	if becameNewTip && m.gate != nil {
		if err := m.gate.Announce(got); err != nil {
			m.log.Warn("syncmgr: announcing new block failed", zap.Error(err))
		}
	}

	if _, hasMore := rec.state.AdvanceBlock(); hasMore {
		m.requestNextBlock(ctx, id, rec)
		return
	}

	// Finished this batch: ask again in case the peer's tip moved further
	// while we were downloading, same as the initial header sync.
	if err := m.beginHeaderSync(ctx, id); err != nil {
		m.log.Warn("syncmgr: re-sync after block batch failed", zap.String("peer", string(id)), zap.Error(err))
	}
}

func (m *Manager) handleError(ctx context.Context, id transport.PeerID, errEv transport.ErrorEvent) {
	action, rs, err := m.tracker.OnError(errEv.RequestID, errEv.Err)
	if err != nil {
		return
	}
	rec, ok := m.peers[id]
	if !ok {
		return
	}
	switch action {
	case reqtrack.ActionResend:
		m.resend(ctx, id, rec, rs)
	case reqtrack.ActionDisconnect, reqtrack.ActionFatal:
		m.log.Info("syncmgr: disconnecting peer after request failure", zap.String("peer", string(id)), zap.Error(errEv.Err))
		m.dropMisbehaving(id, errEv.Err)
	}
}

func (m *Manager) resend(ctx context.Context, id transport.PeerID, rec *peerRecord, rs *reqtrack.RequestState) {
	var msg transport.SyncingMessage
	switch rs.Kind.Tag {
	case reqtrack.KindGetHeaders:
		msg = transport.SyncingMessage{GetHeaders: &transport.GetHeaders{Locator: rec.state.Locator()}}
	case reqtrack.KindGetBlocks:
		msg = transport.SyncingMessage{GetBlocks: &transport.GetBlocks{BlockIDs: rs.Kind.BlockIDs}}
	}
	reqID, err := rec.handle.SendRequest(ctx, id, msg)
	if err != nil {
		m.log.Warn("syncmgr: resend failed", zap.String("peer", string(id)), zap.Error(err))
		return
	}
	m.tracker.Record(reqID, id, rs.Kind)
}

func (m *Manager) handleAnnouncedBlock(ctx context.Context, id transport.PeerID, be transport.BlockEvent) {
	if be.Message.Blocks == nil {
		return
	}
	for i := range be.Message.Blocks.Blocks {
		b := &be.Message.Blocks.Blocks[i]
		becameNewTip, err := m.chain.ProcessBlock(ctx, b, chainstate.SourcePeer)
		if err != nil {
			m.log.Debug("syncmgr: rejected unsolicited block announcement", zap.String("peer", string(id)), zap.Error(err))
			continue
		}
		if m.metrics != nil {
			m.metrics.BlocksProcessedTotal.Inc()
		}
		if becameNewTip && m.gate != nil {
			if err := m.gate.Announce(b); err != nil {
				m.log.Warn("syncmgr: re-announcing block failed", zap.Error(err))
			}
		}
	}
	m.tracker.Touch(id)
}

// chainReaderAdapter narrows a chainstate.Handle to chain.ChainReader, the
// slice the locator builder and header filter need.
type chainReaderAdapter struct {
	h chainstate.Handle
}

func (a chainReaderAdapter) BestHeight(ctx context.Context) (chain.BlockHeight, error) {
	return a.h.BestHeight(ctx)
}

func (a chainReaderAdapter) MainChainHeaderAt(ctx context.Context, height chain.BlockHeight) (chain.BlockID, error) {
	return a.h.MainChainHeaderAt(ctx, height)
}

func (a chainReaderAdapter) HasHeader(ctx context.Context, id chain.BlockID) (bool, error) {
	return a.h.HasHeader(ctx, id)
}

func (a chainReaderAdapter) GetHeader(ctx context.Context, id chain.BlockID) (*chain.BlockHeader, error) {
	return a.h.GetHeader(ctx, id)
}
