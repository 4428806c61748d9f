package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/session"
)

type balancesRequest struct {
	Address string `json:"address"`
}

// Balances handles POST /api/balances. It runs a query through the session and
// answers with the resulting snapshot.
func Balances(sess *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

		var req balancesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid balances request body", "error", err)
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "request body must be JSON: {\"address\": \"...\"}")
			return
		}

		slog.Info("balances requested",
			"address", req.Address,
			"remoteAddr", r.RemoteAddr,
		)

		snap, err := sess.Run(r.Context(), req.Address)
		switch {
		case err == nil:
			writeData(w, http.StatusOK, snap, start)
		case errors.Is(err, config.ErrQuerySuperseded):
			writeError(w, http.StatusConflict, config.ErrorQuerySuperseded, session.Message(err))
		case config.IsUserError(err):
			writeError(w, http.StatusBadRequest, snap.Error.Code, snap.Error.Message)
		default:
			slog.Warn("balances lookup failed",
				"address", req.Address,
				"error", err,
				"transient", config.IsTransient(err),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			setRetryAfter(w, err)
			writeError(w, http.StatusBadGateway, snap.Error.Code, snap.Error.Message)
		}
	}
}

// setRetryAfter advertises when a transient upstream failure is worth retrying.
// Permanent failures get no header.
func setRetryAfter(w http.ResponseWriter, err error) {
	if !config.IsTransient(err) {
		return
	}
	secs := int(math.Ceil(config.GetRetryAfter(err).Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

// GetSession handles GET /api/session.
func GetSession(sess *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sess.Snapshot(), time.Now())
	}
}
