package coordinator

import (
	"context"

	"github.com/paw-chain/prover/x/prover/types"
)

// MergeTasksFromPeers pulls the task view of every peer behind the node lookup
// and folds it into the local registry. Any lookup or peer failure aborts the
// pass before anything is merged.
func (c *Coordinator) MergeTasksFromPeers(ctx context.Context) error {
	if c.nodeLookup == "" {
		return nil
	}

	addrs, err := c.resolver.Resolve(ctx, c.nodeLookup)
	if err != nil {
		return err
	}

	views := make([]types.NodeInformation, 0, len(addrs))
	for _, addr := range addrs {
		info, err := c.peers.Info(ctx, addr)
		if err != nil {
			return types.ErrPeerTransport.Wrapf("info from %s: %s", addr, err)
		}
		if info.ID == c.nodeID {
			c.logger.Debug("merge: skipping self", "addr", addr)
			continue
		}
		views = append(views, info)
	}

	for _, info := range views {
		c.logger.Debug("merge: merging with peer", "peer", info.ID, "tasks", len(info.Tasks))
		c.MergeTasks(info)
	}
	return nil
}

// MergeTasks folds one peer view into the registry. Unknown tasks are copied,
// known tasks take the peer result only when the peer edition is newer.
func (c *Coordinator) MergeTasks(info types.NodeInformation) (added, updated int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, peerTask := range info.Tasks {
		local, ok := c.state.tasks.Find(peerTask.Options)
		if !ok {
			c.state.tasks.Append(peerTask.Clone())
			added++
			continue
		}
		if local.Edition >= peerTask.Edition {
			continue
		}

		local.Edition = peerTask.Edition
		local.Result = nil
		if peerTask.Result != nil {
			res := peerTask.Result.Clone()
			local.Result = &res
		}
		updated++
	}

	if added > 0 {
		c.metrics.MergedTasks.WithLabelValues("added").Add(float64(added))
		c.metrics.TasksKnown.Set(float64(c.state.tasks.Len()))
	}
	if updated > 0 {
		c.metrics.MergedTasks.WithLabelValues("updated").Add(float64(updated))
	}
	return added, updated
}
