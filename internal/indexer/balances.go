package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/models"
	"github.com/Fantasim/tokenidx/internal/units"
)

type tokenBalancesResult struct {
	Address       string              `json:"address"`
	TokenBalances []tokenBalanceEntry `json:"tokenBalances"`
	PageKey       string              `json:"pageKey"`
}

type tokenBalanceEntry struct {
	ContractAddress string  `json:"contractAddress"`
	TokenBalance    *string `json:"tokenBalance"`
	Error           *string `json:"error"`
}

// TokenBalances lists the ERC-20 balances held by address, in API order.
// Entries the API could not read carry a non-empty Error and a zero balance.
func (c *Client) TokenBalances(ctx context.Context, address string) ([]models.TokenBalanceEntry, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidAddress, address)
	}

	var result tokenBalancesResult
	params := []interface{}{address, config.TokenSpecERC20}
	if err := c.call(ctx, MethodTokenBalances, params, &result); err != nil {
		return nil, err
	}

	if result.PageKey != "" {
		slog.Info("token balance list truncated by provider",
			"address", address,
			"returned", len(result.TokenBalances),
		)
	}

	entries := make([]models.TokenBalanceEntry, 0, len(result.TokenBalances))
	for i, tb := range result.TokenBalances {
		if !common.IsHexAddress(tb.ContractAddress) {
			return nil, fmt.Errorf("%s: %w: entry %d has contract %q", MethodTokenBalances, config.ErrMalformedResponse, i, tb.ContractAddress)
		}

		entry := models.TokenBalanceEntry{
			ContractAddress: common.HexToAddress(tb.ContractAddress).Hex(),
			RawBalance:      "0",
		}

		switch {
		case tb.Error != nil && *tb.Error != "":
			entry.Error = *tb.Error
		case tb.TokenBalance == nil:
			entry.Error = "balance missing"
		default:
			qty, err := units.ParseQuantity(*tb.TokenBalance)
			if err != nil {
				entry.Error = err.Error()
				break
			}
			entry.RawBalance = qty.Dec()
		}

		if entry.Error != "" {
			slog.Warn("token balance entry unreadable",
				"address", address,
				"contract", entry.ContractAddress,
				"error", entry.Error,
			)
		}

		entries = append(entries, entry)
	}

	slog.Debug("token balances fetched",
		"address", address,
		"count", len(entries),
	)

	return entries, nil
}
