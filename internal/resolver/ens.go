package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/tokenidx/internal/config"
)

// Function selectors: first 4 bytes of keccak256 of the signature.
var (
	resolverSelector = crypto.Keccak256([]byte("resolver(bytes32)"))[:4]
	addrSelector     = crypto.Keccak256([]byte("addr(bytes32)"))[:4]
	nameSelector     = crypto.Keccak256([]byte("name(bytes32)"))[:4]

	supportsInterfaceSelector = crypto.Keccak256([]byte("supportsInterface(bytes4)"))[:4]
	// resolveSelector doubles as the ENSIP-10 extended resolver interface ID.
	resolveSelector = crypto.Keccak256([]byte("resolve(bytes,bytes)"))[:4]
)

const maxLabelLength = 63

var stringArgs = func() abi.Arguments {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

var bytesArgs = func() abi.Arguments {
	t, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

var resolveArgs = abi.Arguments{bytesArgs[0], bytesArgs[0]}

// ContractCaller is the subset of ethclient.Client the resolver needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// NameHash computes the EIP-137 namehash of a normalized name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node.Bytes(), labelHash))
	}
	return node
}

// ReverseNode returns the namehash of <hex>.addr.reverse for addr.
func ReverseNode(addr common.Address) common.Hash {
	hexLower := strings.ToLower(addr.Hex()[2:])
	return NameHash(hexLower + "." + config.ENSReverseSuffix)
}

// encodeNodeCall builds calldata for a function taking a single bytes32.
func encodeNodeCall(selector []byte, node common.Hash) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], selector)
	copy(data[4:], node.Bytes())
	return data
}

// callAddress performs an eth_call whose return value is a single address.
func callAddress(ctx context.Context, caller ContractCaller, to common.Address, data []byte) (common.Address, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	if len(out) == 0 {
		// No code at the target, or the resolver does not implement the method.
		return common.Address{}, nil
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("call %s: %w: expected 32 bytes, got %d", to.Hex(), config.ErrMalformedResponse, len(out))
	}
	return common.BytesToAddress(out[12:32]), nil
}

// callString performs an eth_call whose return value is a single ABI string.
func callString(ctx context.Context, caller ContractCaller, to common.Address, data []byte) (string, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	if len(out) == 0 {
		return "", nil
	}
	values, err := stringArgs.Unpack(out)
	if err != nil {
		return "", fmt.Errorf("call %s: %w: %v", to.Hex(), config.ErrMalformedResponse, err)
	}
	s, _ := values[0].(string)
	return s, nil
}

// DNSEncode returns name in DNS wire format: each label prefixed by its length,
// terminated by a zero byte.
func DNSEncode(name string) ([]byte, error) {
	out := make([]byte, 0, len(name)+2)
	if name == "" {
		return append(out, 0), nil
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > maxLabelLength {
			return nil, fmt.Errorf("label %q: length must be 1-%d bytes", label, maxLabelLength)
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0), nil
}

// encodeInterfaceCall builds supportsInterface(bytes4) calldata.
func encodeInterfaceCall(interfaceID []byte) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], supportsInterfaceSelector)
	copy(data[4:8], interfaceID)
	return data
}

// callSupportsInterface reports whether the contract at to claims interfaceID.
// A revert counts as "no".
func callSupportsInterface(ctx context.Context, caller ContractCaller, to common.Address, interfaceID []byte) (bool, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: encodeInterfaceCall(interfaceID)}, nil)
	if err != nil {
		if isCallError(err) {
			return false, nil
		}
		return false, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	if len(out) < 32 {
		return false, nil
	}
	return out[31] != 0, nil
}

// callResolve performs an ENSIP-10 resolve(name, data) and returns the inner result.
func callResolve(ctx context.Context, caller ContractCaller, to common.Address, dnsName, inner []byte) ([]byte, error) {
	args, err := resolveArgs.Pack(dnsName, inner)
	if err != nil {
		return nil, fmt.Errorf("encode resolve: %w", err)
	}
	data := append(append([]byte{}, resolveSelector...), args...)

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	values, err := bytesArgs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w: %v", to.Hex(), config.ErrMalformedResponse, err)
	}
	result, _ := values[0].([]byte)
	return result, nil
}

// isCallError reports whether err is an answer from the node (revert or other
// JSON-RPC error) rather than a transport failure.
func isCallError(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// parentName drops the first label: "a.b.eth" -> "b.eth", "eth" -> "".
func parentName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
