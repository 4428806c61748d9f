package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/models"
)

type tokenMetadataResult struct {
	Name     *string `json:"name"`
	Symbol   *string `json:"symbol"`
	Decimals *int    `json:"decimals"`
	Logo     *string `json:"logo"`
}

// TokenMetadata fetches symbol, decimals and logo for one ERC-20 contract.
func (c *Client) TokenMetadata(ctx context.Context, contract string) (models.TokenMetadata, error) {
	if !common.IsHexAddress(contract) {
		return models.TokenMetadata{}, fmt.Errorf("%w: contract %q", config.ErrInvalidAddress, contract)
	}

	var result tokenMetadataResult
	if err := c.call(ctx, MethodTokenMetadata, []interface{}{contract}, &result); err != nil {
		return models.TokenMetadata{}, err
	}

	md := models.TokenMetadata{
		Name:     deref(result.Name),
		Symbol:   deref(result.Symbol),
		Decimals: result.Decimals,
		Logo:     deref(result.Logo),
	}
	if md.Decimals != nil && (*md.Decimals < 0 || *md.Decimals > 255) {
		return models.TokenMetadata{}, fmt.Errorf("%s: %w: decimals %d out of range", MethodTokenMetadata, config.ErrMalformedResponse, *md.Decimals)
	}

	return md, nil
}

// ChainID asks the indexing endpoint which chain it serves.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var hex string
	if err := c.call(ctx, MethodChainID, []interface{}{}, &hex); err != nil {
		return 0, err
	}
	id, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %q", MethodChainID, config.ErrMalformedResponse, hex)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
