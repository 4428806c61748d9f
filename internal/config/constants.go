package config

import "time"

// Network
const (
	NetworkMainnet = "mainnet"
	MainnetChainID = 1
	AlchemyNetwork = "eth-mainnet"
	TokenSpecERC20 = "erc20"
)

// ENS (mainnet registry)
const (
	ENSRegistryAddress = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"
	ENSReverseSuffix   = "addr.reverse"
)

// Indexing API
const (
	IndexerRequestTimeout  = 20 * time.Second
	MaxMetadataConcurrency = 64
	MaxRetriesLimit        = 5
	RetryWaitMin           = 500 * time.Millisecond
	RetryWaitMax           = 5 * time.Second
)

// Circuit Breaker
const (
	CircuitClosed             = "closed"
	CircuitOpen               = "open"
	CircuitHalfOpen           = "half_open"
	CircuitBreakerThreshold   = 5
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1
)

// Wallet
const (
	WalletDialTimeout  = 10 * time.Second
	WalletPollInterval = 2 * time.Second
	WalletCallTimeout  = 2 * time.Minute // eth_requestAccounts waits on the user
)

// Display
const (
	DisplayDecimals = 4
	DisplayMaxChars = 12
	UnknownSymbol   = "?"
)

// Query
const (
	QueryTimeout   = 90 * time.Second
	ResolveTimeout = 15 * time.Second
)

// Server
const (
	ServerReadTimeout     = 30 * time.Second
	ServerWriteTimeout    = 120 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerMaxHeaderBytes  = 1 << 20
	ShutdownTimeout       = 15 * time.Second
	MaxRequestBodyBytes   = 4 << 10
	SSEKeepAliveInterval  = 15 * time.Second
	SSEHubChannelBuffer   = 32
	HealthCheckTimeout    = 10 * time.Second
	WebsocketWriteTimeout = 10 * time.Second
	WebsocketPingInterval = 30 * time.Second
)

// Logging
const (
	LogFilePrefix  = "tokenidx-"
	LogFilePattern = "tokenidx-%s.log" // %s = YYYY-MM-DD
	LogMaxAgeDays  = 30
)
