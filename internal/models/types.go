package models

import "time"

// Resolution is the verdict of the address resolver for one user input.
type Resolution struct {
	Input       string `json:"input"`
	Address     string `json:"address"`               // EIP-55 checksummed
	ENSName     string `json:"ensName,omitempty"`     // set when the input was a name
	PrimaryName string `json:"primaryName,omitempty"` // reverse record, best-effort
}

// TokenBalanceEntry is one (contract, raw balance) pair as returned by the indexing API.
type TokenBalanceEntry struct {
	ContractAddress string `json:"contractAddress"`
	RawBalance      string `json:"rawBalance"`      // base-10 integer string
	Error           string `json:"error,omitempty"` // per-token error reported by the API
}

// TokenMetadata describes one ERC-20 contract.
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"` // nil when the contract does not expose decimals()
	Logo     string `json:"logo,omitempty"`
}

// TokenRecord joins a contract's balance and metadata. Records are keyed by contract
// address, so metadata can never be attached to another contract's balance.
type TokenRecord struct {
	ContractAddress string         `json:"contractAddress"`
	RawBalance      string         `json:"rawBalance"`
	BalanceError    string         `json:"balanceError,omitempty"`
	Metadata        *TokenMetadata `json:"metadata,omitempty"`
	MetadataError   string         `json:"metadataError,omitempty"`
	DisplayBalance  string         `json:"displayBalance"`
}

// Symbol returns the token symbol or the placeholder when metadata is missing.
func (r TokenRecord) Symbol(placeholder string) string {
	if r.Metadata == nil || r.Metadata.Symbol == "" {
		return placeholder
	}
	return r.Metadata.Symbol
}

// Logo returns the token logo URL, empty when unknown.
func (r TokenRecord) Logo() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Logo
}

// QueryResult is the full outcome of one balance lookup.
type QueryResult struct {
	Resolution       Resolution    `json:"resolution"`
	Records          []TokenRecord `json:"records"`
	MetadataFailures int           `json:"metadataFailures"`
	Elapsed          time.Duration `json:"-"`
	ElapsedMs        int64         `json:"elapsedMs"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains execution metadata.
type APIMeta struct {
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
