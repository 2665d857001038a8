package cluster

import (
	"context"
	"errors"
	"fmt"

	"ringstore/internal/ring"
)

// copyOwned copies to newcomer every file on source that now resolves to it
// and returns the copied paths. Nothing on source is modified.
func (rt *Router) copyOwned(ctx context.Context, source, newcomer ring.Node) ([]string, error) {
	src, err := rt.dial(source.Addr)
	if err != nil {
		return nil, err
	}
	dst, err := rt.dial(newcomer.Addr)
	if err != nil {
		return nil, err
	}

	paths, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	owned := make([]string, 0)
	for _, p := range paths {
		owner, err := rt.ring.Resolve(p)
		if err != nil {
			return nil, err
		}
		if owner == newcomer {
			owned = append(owned, p)
		}
	}

	for _, p := range owned {
		if err := copyFile(ctx, src, dst, p); err != nil {
			return nil, err
		}
	}
	return owned, nil
}

// deleteFrom removes paths from node, attempting every path even after a
// failure.
func (rt *Router) deleteFrom(ctx context.Context, n ring.Node, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	client, err := rt.dial(n.Addr)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := client.Delete(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete %s from %s: %w", p, n.ID, err))
		}
	}
	return errors.Join(errs...)
}

// pushFrom moves every file on the departed node to its current owner.
func (rt *Router) pushFrom(ctx context.Context, departed ring.Node) (int, error) {
	src, err := rt.dial(departed.Addr)
	if err != nil {
		return 0, err
	}
	paths, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(paths) > 0 && rt.ring.Len() == 0 {
		return 0, fmt.Errorf("%d files on %s have no remaining owner: %w", len(paths), departed.ID, ring.ErrRingEmpty)
	}

	moved := 0
	for _, p := range paths {
		owner, err := rt.ring.Resolve(p)
		if err != nil {
			return moved, err
		}
		dst, err := rt.dial(owner.Addr)
		if err != nil {
			return moved, err
		}
		if err := copyFile(ctx, src, dst, p); err != nil {
			return moved, err
		}
		if err := src.Delete(ctx, p); err != nil {
			return moved, fmt.Errorf("delete %s from %s: %w", p, departed.ID, err)
		}
		moved++
	}
	return moved, nil
}

func copyFile(ctx context.Context, src, dst StorageClient, path string) error {
	content, err := src.Fetch(ctx, path)
	if err != nil {
		return err
	}
	return dst.Store(ctx, path, content)
}
