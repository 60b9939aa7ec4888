package commands

import (
	"context"

	"github.com/binarysniffer/binarysniffer/pkg/engine"
	"github.com/binarysniffer/binarysniffer/pkg/event"
	"github.com/binarysniffer/binarysniffer/pkg/store"
)

// runtime bundles the process-wide resources every subcommand needs: the
// engine façade, the watched signature store backing it, and an event bus
// commands can subscribe to for progress reporting.
type runtime struct {
	engine *engine.Engine
	store  *store.Watched
	events *event.Bus
	cancel context.CancelFunc
}

type runtimeKey struct{}

func withRuntime(ctx context.Context, rt *runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func runtimeFromContext(ctx context.Context) (*runtime, bool) {
	rt, ok := ctx.Value(runtimeKey{}).(*runtime)
	return rt, ok && rt != nil
}
