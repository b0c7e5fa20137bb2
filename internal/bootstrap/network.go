package bootstrap

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/imamik/k8solo/internal/host"
	"github.com/imamik/k8solo/internal/poll"
	"github.com/imamik/k8solo/internal/sequencer"
	"github.com/imamik/k8solo/internal/util/async"
)

// verifyNetwork checks that the host has its configured address and can
// reach the outside world, probing all endpoints concurrently. Nothing on
// the host is changed, so every failure is reported as a precondition.
func (b *bootstrapper) verifyNetwork(ctx context.Context) error {
	log := b.rc.Log.WithName(StepNetwork)
	node := b.cfg.Node

	if err := host.CheckInterfaceAddress(b.rc.InterfaceAddrs, node.Interface, node.IP); err != nil {
		return sequencer.Precondition(err)
	}
	log.Info("interface carries node address", "interface", node.Interface, "ip", node.IP)

	tasks := make([]async.Task, 0, len(b.cfg.Network.Probes))
	for _, probe := range b.cfg.Network.Probes {
		hostname, portStr, err := net.SplitHostPort(probe)
		if err != nil {
			return sequencer.Precondition(fmt.Errorf("invalid probe %q: %w", probe, err))
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return sequencer.Precondition(fmt.Errorf("invalid probe port in %q: %w", probe, err))
		}

		tasks = append(tasks, async.Task{
			Name: probe,
			Func: func(ctx context.Context) error {
				if err := b.await(ctx, "reachability of "+probe, b.rc.Probe(hostname, port), b.timeouts.NetworkProbe, poll.Required); err != nil {
					return fmt.Errorf("unreachable: %w", err)
				}
				log.Info("endpoint reachable", "endpoint", probe)
				return nil
			},
		})
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return sequencer.Precondition(err)
	}
	return nil
}
