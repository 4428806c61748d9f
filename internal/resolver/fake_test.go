package resolver

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/config"
)

// fakeENS emulates the ENS registry, a public resolver and one wildcard resolver in memory.
type fakeENS struct {
	mu        sync.Mutex
	calls     int
	err       error
	registry  common.Address
	resolver  common.Address
	addrs     map[common.Hash]common.Address
	names     map[common.Hash]string
	noResolve map[common.Hash]bool

	// Wildcard (ENSIP-10) resolver registered on a parent name.
	wildcardParent    common.Hash
	wildcardResolver  common.Address
	wildcardSupported bool
	wildcardAddrs     map[common.Hash]common.Address
	wildcardNames     map[common.Hash]string
}

var (
	vitalik          = common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
	publicResolver   = common.HexToAddress("0x231b0Ee14048e9dCcD1d247744d114a4EB5E8E63")
	offchainResolver = common.HexToAddress("0x1934FC75577e6a27d2a1E44A7A2f8F2A4b3A4b3A")
)

// revertError mimics the JSON-RPC error ethclient returns for a reverted eth_call.
type revertError struct{}

func (revertError) Error() string  { return "execution reverted" }
func (revertError) ErrorCode() int { return 3 }

func newFakeENS() *fakeENS {
	f := &fakeENS{
		registry:  common.HexToAddress(config.ENSRegistryAddress),
		resolver:  publicResolver,
		addrs:     make(map[common.Hash]common.Address),
		names:     make(map[common.Hash]string),
		noResolve: make(map[common.Hash]bool),

		wildcardResolver: offchainResolver,
		wildcardAddrs:    make(map[common.Hash]common.Address),
		wildcardNames:    make(map[common.Hash]string),
	}
	f.addrs[NameHash("vitalik.eth")] = vitalik
	f.names[ReverseNode(vitalik)] = "vitalik.eth"
	return f
}

func (f *fakeENS) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeENS) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	if msg.To != nil && *msg.To == f.wildcardResolver {
		return f.callWildcard(msg.Data)
	}
	if msg.To == nil || len(msg.Data) != 36 {
		return nil, errors.New("unexpected call shape")
	}

	selector := msg.Data[:4]
	node := common.BytesToHash(msg.Data[4:36])

	switch {
	case *msg.To == f.registry && bytes.Equal(selector, resolverSelector):
		if f.wildcardParent != (common.Hash{}) && node == f.wildcardParent {
			return common.LeftPadBytes(f.wildcardResolver.Bytes(), 32), nil
		}
		if f.noResolve[node] {
			return common.LeftPadBytes(nil, 32), nil
		}
		if _, ok := f.addrs[node]; ok {
			return common.LeftPadBytes(f.resolver.Bytes(), 32), nil
		}
		if _, ok := f.names[node]; ok {
			return common.LeftPadBytes(f.resolver.Bytes(), 32), nil
		}
		return common.LeftPadBytes(nil, 32), nil

	case *msg.To == f.resolver && bytes.Equal(selector, addrSelector):
		return common.LeftPadBytes(f.addrs[node].Bytes(), 32), nil

	case *msg.To == f.resolver && bytes.Equal(selector, nameSelector):
		return stringArgs.Pack(f.names[node])
	}

	return nil, errors.New("execution reverted")
}

// serveWildcard registers the wildcard resolver on parent and makes it answer addr
// for name.
func (f *fakeENS) serveWildcard(parent, name string, addr common.Address) {
	f.wildcardParent = NameHash(parent)
	f.wildcardSupported = true
	f.wildcardAddrs[NameHash(name)] = addr
	f.wildcardNames[NameHash(name)] = name
}

func (f *fakeENS) callWildcard(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, revertError{}
	}

	switch selector := data[:4]; {
	case bytes.Equal(selector, supportsInterfaceSelector):
		if !f.wildcardSupported || !bytes.Equal(data[4:8], resolveSelector) {
			return common.LeftPadBytes(nil, 32), nil
		}
		return common.LeftPadBytes([]byte{1}, 32), nil

	case bytes.Equal(selector, resolveSelector) && f.wildcardSupported:
		values, err := resolveArgs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		dnsName, _ := values[0].([]byte)
		inner, _ := values[1].([]byte)
		if len(inner) != 36 || !bytes.Equal(inner[:4], addrSelector) {
			return nil, revertError{}
		}
		node := common.BytesToHash(inner[4:36])
		want, err := DNSEncode(f.wildcardNames[node])
		if err != nil || !bytes.Equal(dnsName, want) {
			return nil, revertError{}
		}
		return bytesArgs.Pack(common.LeftPadBytes(f.wildcardAddrs[node].Bytes(), 32))
	}

	return nil, revertError{}
}
