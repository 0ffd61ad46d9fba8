package coordinator

import (
	"context"

	"github.com/paw-chain/prover/x/prover/types"
)

// obtainTask decides whether this node may compute its pending task. A peer
// that wants the same task wins when it already obtained it or when its id is
// not greater than ours. The smallest id takes a contested task that nobody
// started yet.
func (c *Coordinator) obtainTask(ctx context.Context) (bool, error) {
	c.mu.Lock()
	pending := c.state.pending
	c.mu.Unlock()

	if pending == nil {
		return false, types.ErrTaskMissing.Wrap("no pending task to obtain")
	}
	candidate := *pending

	if c.nodeLookup == "" {
		return true, nil
	}

	addrs, err := c.resolver.Resolve(ctx, c.nodeLookup)
	if err != nil {
		return false, err
	}

	for _, addr := range addrs {
		peer, err := c.peers.Status(ctx, addr)
		if err != nil {
			return false, types.ErrPeerTransport.Wrapf("status from %s: %s", addr, err)
		}
		if peer.ID == c.nodeID {
			c.logger.Debug("obtain: skipping self", "addr", addr)
			continue
		}
		if peer.Task == nil || !peer.Task.SameTask(candidate) {
			continue
		}
		if !peer.Obtained && peer.ID > c.nodeID {
			c.logger.Debug("obtain: won task against peer", "peer", peer.ID, "task", candidate.String())
			continue
		}

		c.logger.Debug("obtain: lost task to peer", "peer", peer.ID, "obtained", peer.Obtained, "task", candidate.String())
		return false, nil
	}
	return true, nil
}
