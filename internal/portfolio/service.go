// Package portfolio runs a complete balance lookup: resolve, fetch balances,
// fetch metadata for every contract, merge.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/metrics"
	"github.com/Fantasim/tokenidx/internal/models"
	"github.com/Fantasim/tokenidx/internal/units"
)

// AddressResolver validates input and resolves names.
type AddressResolver interface {
	Resolve(ctx context.Context, input string) (models.Resolution, error)
	PrimaryName(ctx context.Context, addr common.Address) (string, error)
}

// BalanceSource lists token balances for an address.
type BalanceSource interface {
	TokenBalances(ctx context.Context, address string) ([]models.TokenBalanceEntry, error)
}

// MetadataSource describes one token contract.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, contract string) (models.TokenMetadata, error)
}

// Service orchestrates lookups. Metadata requests from all lookups share one pool.
type Service struct {
	resolver AddressResolver
	balances BalanceSource
	metadata MetadataSource
	pool     *ants.Pool
	metrics  *metrics.Metrics
}

// New creates a Service whose metadata pool runs at most concurrency requests at once.
func New(resolver AddressResolver, balances BalanceSource, metadata MetadataSource, concurrency int, m *metrics.Metrics) (*Service, error) {
	pool, err := ants.NewPool(concurrency,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p interface{}) {
			slog.Error("metadata worker panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create metadata pool: %w", err)
	}

	slog.Info("portfolio service created", "metadataConcurrency", concurrency)

	return &Service{
		resolver: resolver,
		balances: balances,
		metadata: metadata,
		pool:     pool,
		metrics:  m,
	}, nil
}

// Close stops the metadata pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Lookup resolves input and returns its token records in indexing API order.
func (s *Service) Lookup(ctx context.Context, input string) (models.QueryResult, error) {
	start := time.Now()

	result, err := s.lookup(ctx, input)

	elapsed := time.Since(start)
	s.metrics.ObserveQuery(outcomeOf(err), elapsed)

	if err != nil {
		return models.QueryResult{}, err
	}

	result.Elapsed = elapsed
	result.ElapsedMs = elapsed.Milliseconds()

	slog.Info("lookup completed",
		"address", result.Resolution.Address,
		"tokens", len(result.Records),
		"metadataFailures", result.MetadataFailures,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return result, nil
}

func (s *Service) lookup(ctx context.Context, input string) (models.QueryResult, error) {
	resolution, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		slog.Info("lookup input rejected", "input", input, "error", err)
		return models.QueryResult{}, err
	}

	// The reverse record is decoration only and runs beside the balance fetch.
	var (
		primaryName string
		primaryWG   sync.WaitGroup
	)
	if resolution.ENSName == "" {
		primaryWG.Add(1)
		go func() {
			defer primaryWG.Done()
			name, err := s.resolver.PrimaryName(ctx, common.HexToAddress(resolution.Address))
			if err != nil {
				slog.Debug("primary name lookup failed", "address", resolution.Address, "error", err)
				return
			}
			primaryName = name
		}()
	}

	entries, err := s.balances.TokenBalances(ctx, resolution.Address)
	primaryWG.Wait()
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("fetch balances for %s: %w", resolution.Address, err)
	}
	resolution.PrimaryName = primaryName

	slog.Info("token balances fetched",
		"address", resolution.Address,
		"count", len(entries),
	)

	records := newRecords(entries)

	failures, err := s.fetchMetadata(ctx, records)
	if err != nil {
		return models.QueryResult{}, err
	}

	for i := range records {
		var decimals *int
		if records[i].Metadata != nil {
			decimals = records[i].Metadata.Decimals
		}
		records[i].DisplayBalance = units.DisplayBalance(records[i].RawBalance, decimals)
	}

	return models.QueryResult{
		Resolution:       resolution,
		Records:          records,
		MetadataFailures: failures,
	}, nil
}

// newRecords is the first pass: one record per balance entry, API order kept.
func newRecords(entries []models.TokenBalanceEntry) []models.TokenRecord {
	records := make([]models.TokenRecord, len(entries))
	for i, e := range entries {
		records[i] = models.TokenRecord{
			ContractAddress: e.ContractAddress,
			RawBalance:      e.RawBalance,
			BalanceError:    e.Error,
		}
	}
	return records
}

type metadataResult struct {
	key      string
	metadata models.TokenMetadata
	err      error
}

// fetchMetadata is the second pass. One request per distinct contract; results are
// merged by contract key. It fails only when ctx is done.
func (s *Service) fetchMetadata(ctx context.Context, records []models.TokenRecord) (int, error) {
	byKey := make(map[string][]int, len(records))
	var keys []string
	for i, r := range records {
		k := recordKey(r.ContractAddress)
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], i)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	results := make(chan metadataResult, len(keys))
	var wg sync.WaitGroup

	for _, k := range keys {
		contract := records[byKey[k][0]].ContractAddress
		key := k

		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			s.metrics.MetadataStarted()
			defer s.metrics.MetadataFinished()

			md, err := s.metadata.TokenMetadata(ctx, contract)
			results <- metadataResult{key: key, metadata: md, err: err}
		})
		if err != nil {
			wg.Done()
			results <- metadataResult{key: key, err: fmt.Errorf("schedule metadata request: %w", err)}
		}
	}

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	failures := 0
	for res := range results {
		for _, i := range byKey[res.key] {
			if res.err != nil {
				records[i].MetadataError = res.err.Error()
				continue
			}
			md := res.metadata
			records[i].Metadata = &md
		}
		if res.err != nil {
			failures += len(byKey[res.key])
			slog.Warn("token metadata unavailable",
				"contract", records[byKey[res.key][0]].ContractAddress,
				"error", res.err,
			)
		}
	}

	slog.Debug("token metadata batch finished",
		"contracts", len(keys),
		"failures", failures,
	)

	return failures, nil
}

func recordKey(contract string) string {
	return strings.ToLower(contract)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case config.IsUserError(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, config.ErrQuerySuperseded):
		return metrics.OutcomeCancelled
	case errors.Is(err, config.ErrProviderRateLimit):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}
