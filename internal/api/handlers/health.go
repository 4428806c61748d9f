package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/indexer"
)

type healthResponse struct {
	Status  string                  `json:"status"`
	Version string                  `json:"version"`
	Network string                  `json:"network"`
	Indexer indexer.BreakerSnapshot `json:"indexer"`
	Wallet  string                  `json:"wallet"`
}

// HealthHandler handles GET /api/health. Status is "degraded" while the indexing
// API circuit is not closed.
func HealthHandler(cfg *config.Config, version string, breaker func() indexer.BreakerSnapshot, wallet WalletConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		resp := healthResponse{
			Status:  "ok",
			Version: version,
			Network: cfg.Network,
			Indexer: breaker(),
			Wallet:  "disabled",
		}
		if resp.Indexer.State != config.CircuitClosed {
			resp.Status = "degraded"
		}
		if wallet.Configured() {
			resp.Wallet = "configured"
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
