// Package resolver validates user-supplied account identifiers and resolves ENS names.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/metrics"
	"github.com/Fantasim/tokenidx/internal/models"
)

// Resolver turns free-form input into a checksummed address.
type Resolver struct {
	caller   ContractCaller
	registry common.Address
	metrics  *metrics.Metrics
}

// New creates a Resolver against the mainnet ENS registry.
func New(caller ContractCaller, m *metrics.Metrics) *Resolver {
	return &Resolver{
		caller:   caller,
		registry: common.HexToAddress(config.ENSRegistryAddress),
		metrics:  m,
	}
}

// Resolve validates input and, for names, resolves it through ENS.
// Hex input and malformed input never reach the network.
func (r *Resolver) Resolve(ctx context.Context, input string) (models.Resolution, error) {
	kind := Classify(input)

	slog.Debug("resolving address input",
		"input", input,
		"kind", kind.String(),
	)

	switch kind {
	case KindEmpty:
		return models.Resolution{}, invalid(config.ErrEmptyAddress,
			"Please enter an Ethereum address or ENS name.")

	case KindHex:
		addr, err := ValidateHex(input)
		if err != nil {
			return models.Resolution{}, err
		}
		return models.Resolution{Input: input, Address: addr.Hex()}, nil

	case KindName:
		name := NormalizeName(input)
		addr, err := r.LookupName(ctx, name)
		if err != nil {
			return models.Resolution{}, err
		}
		return models.Resolution{Input: input, Address: addr.Hex(), ENSName: name}, nil

	default:
		return models.Resolution{}, invalid(config.ErrInvalidAddress,
			"Invalid address. Please enter a valid Ethereum address or ENS name.")
	}
}

// LookupName performs ENS forward resolution of a normalized name. When the name has
// no resolver of its own, the closest ancestor's resolver is used if it supports
// wildcard resolution (ENSIP-10).
func (r *Resolver) LookupName(ctx context.Context, name string) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ResolveTimeout)
	defer cancel()

	start := time.Now()
	node := NameHash(name)

	resolverAddr, owner, err := r.findResolver(ctx, name)
	if err != nil {
		return common.Address{}, err
	}
	if resolverAddr == (common.Address{}) {
		slog.Info("ens name has no resolver", "name", name)
		return common.Address{}, invalid(config.ErrNameNotResolved, "%s does not resolve to an address.", name)
	}

	var addr common.Address
	if owner == name {
		addr, err = r.observe("addr", func() (common.Address, error) {
			return callAddress(ctx, r.caller, resolverAddr, encodeNodeCall(addrSelector, node))
		})
	} else {
		addr, err = r.resolveWildcard(ctx, resolverAddr, name, owner, node)
	}
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return common.Address{}, err
		}
		return common.Address{}, fmt.Errorf("ens addr(%s): %w: %w", name, config.ErrProviderUnavailable, err)
	}
	if addr == (common.Address{}) {
		slog.Info("ens name has no address record", "name", name, "resolver", resolverAddr.Hex())
		return common.Address{}, invalid(config.ErrNameNotResolved, "%s does not resolve to an address.", name)
	}

	slog.Info("ens name resolved",
		"name", name,
		"address", addr.Hex(),
		"wildcard", owner != name,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return addr, nil
}

// findResolver returns the resolver of name or of its closest ancestor, and the name
// that resolver is registered for. The search stops below the root and "eth".
func (r *Resolver) findResolver(ctx context.Context, name string) (common.Address, string, error) {
	for current := name; current != "" && current != "eth"; current = parentName(current) {
		addr, err := r.resolverOf(ctx, NameHash(current))
		if err != nil {
			return common.Address{}, "", err
		}
		if addr != (common.Address{}) {
			return addr, current, nil
		}
	}
	return common.Address{}, "", nil
}

// resolveWildcard asks an ancestor's extended resolver for addr(node) of name.
func (r *Resolver) resolveWildcard(ctx context.Context, resolverAddr common.Address, name, owner string, node common.Hash) (common.Address, error) {
	ok, err := callSupportsInterface(ctx, r.caller, resolverAddr, resolveSelector)
	r.metrics.ObserveUpstream("ens_supportsInterface", outcomeOf(err))
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		slog.Info("ancestor resolver does not support wildcards",
			"name", name,
			"ancestor", owner,
			"resolver", resolverAddr.Hex(),
		)
		return common.Address{}, nil
	}

	dnsName, err := DNSEncode(name)
	if err != nil {
		return common.Address{}, invalid(config.ErrNameNotResolved, "%s does not resolve to an address.", name)
	}

	return r.observe("resolve", func() (common.Address, error) {
		out, err := callResolve(ctx, r.caller, resolverAddr, dnsName, encodeNodeCall(addrSelector, node))
		if err != nil {
			if isCallError(err) {
				return common.Address{}, nil
			}
			return common.Address{}, err
		}
		if len(out) < 32 {
			return common.Address{}, nil
		}
		return common.BytesToAddress(out[12:32]), nil
	})
}

// PrimaryName returns the reverse record of addr, verified by forward resolution.
// An empty string with nil error means no primary name is set.
func (r *Resolver) PrimaryName(ctx context.Context, addr common.Address) (string, error) {
	node := ReverseNode(addr)

	resolverAddr, err := r.resolverOf(ctx, node)
	if err != nil || resolverAddr == (common.Address{}) {
		return "", err
	}

	name, err := callString(ctx, r.caller, resolverAddr, encodeNodeCall(nameSelector, node))
	r.metrics.ObserveUpstream("ens_name", outcomeOf(err))
	if err != nil {
		return "", fmt.Errorf("ens name(%s): %w", addr.Hex(), err)
	}
	if name == "" {
		return "", nil
	}

	// A reverse record is self-asserted; only trust it when the name points back.
	forward, err := r.LookupName(ctx, NormalizeName(name))
	if err != nil || forward != addr {
		slog.Debug("ens reverse record not confirmed",
			"address", addr.Hex(),
			"name", name,
			"forward", forward.Hex(),
		)
		return "", nil
	}

	return NormalizeName(name), nil
}

func (r *Resolver) resolverOf(ctx context.Context, node common.Hash) (common.Address, error) {
	addr, err := r.observe("resolver", func() (common.Address, error) {
		return callAddress(ctx, r.caller, r.registry, encodeNodeCall(resolverSelector, node))
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("ens registry resolver(): %w: %w", config.ErrProviderUnavailable, err)
	}
	return addr, nil
}

func (r *Resolver) observe(method string, fn func() (common.Address, error)) (common.Address, error) {
	addr, err := fn()
	r.metrics.ObserveUpstream("ens_"+method, outcomeOf(err))
	return addr, err
}

func outcomeOf(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeOK
}
