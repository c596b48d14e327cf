package store

import (
	"context"
	"fmt"
	"sync/atomic"

	valkey "github.com/valkey-io/valkey-go"
)

// Generation versions the permission rule set. Every committed write to
// groups, memberships or overrides bumps it; readers key cached results by it.
type Generation interface {
	Current(ctx context.Context) (uint64, error)
	Bump(ctx context.Context) error
}

// LocalGeneration is an in-process counter for single-replica deployments.
type LocalGeneration struct {
	n atomic.Uint64
}

func NewLocalGeneration() *LocalGeneration { return &LocalGeneration{} }

func (g *LocalGeneration) Current(context.Context) (uint64, error) { return g.n.Load(), nil }

func (g *LocalGeneration) Bump(context.Context) error {
	g.n.Add(1)
	return nil
}

// ValkeyGeneration shares the counter across replicas through valkey.
type ValkeyGeneration struct {
	client valkey.Client
	prefix string
	owned  bool
}

// NewValkeyGeneration connects to addr. prefix namespaces the key.
func NewValkeyGeneration(addr, prefix string) (*ValkeyGeneration, error) {
	if addr == "" {
		return nil, fmt.Errorf("valkey address is required")
	}
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	g := NewValkeyGenerationFromClient(cli, prefix)
	g.owned = true
	return g, nil
}

// NewValkeyGenerationFromClient reuses an existing client; Close leaves it open.
func NewValkeyGenerationFromClient(client valkey.Client, prefix string) *ValkeyGeneration {
	if prefix == "" {
		prefix = "portal-iam:"
	}
	return &ValkeyGeneration{client: client, prefix: prefix}
}

func (g *ValkeyGeneration) key() string { return g.prefix + "permissions:generation" }

// Current returns 0 until the first bump.
func (g *ValkeyGeneration) Current(ctx context.Context) (uint64, error) {
	n, err := g.client.Do(ctx, g.client.B().Get().Key(g.key()).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (g *ValkeyGeneration) Bump(ctx context.Context) error {
	return g.client.Do(ctx, g.client.B().Incr().Key(g.key()).Build()).Error()
}

func (g *ValkeyGeneration) Close() {
	if g.owned {
		g.client.Close()
	}
}
