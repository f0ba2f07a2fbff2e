package market

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/auth"
	"github.com/lecfantasy/league-engine/internal/position"
	"github.com/lecfantasy/league-engine/internal/refdata"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
	refs   refdata.Provider
	hub    *ActivityHub // optional
}

// NewHandler creates the HTTP layer. Pass nil for hub to disable /ws.
func NewHandler(engine *Engine, refs refdata.Provider, hub *ActivityHub) *Handler {
	return &Handler{engine: engine, refs: refs, hub: hub}
}

// Routes returns the /api/v1 router. The player catalog and the activity
// stream are public; everything else runs behind requireUser, which must
// place the caller's id in the context via auth.WithUserID.
func (h *Handler) Routes(requireUser func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/players", h.ListPlayers)
	r.Get("/players/{playerID}", h.GetPlayer)
	if h.hub != nil {
		r.Get("/ws", h.hub.HandleWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/leagues/{leagueID}", func(r chi.Router) {
			r.Post("/join", h.JoinLeague)
			r.Get("/roster", h.GetRoster)
			r.Post("/players/{playerID}/buy", h.BuyPlayer)
			r.Post("/players/{playerID}/sell", h.SellPlayer)
			r.Put("/lineup", h.SetStarter)
			r.Get("/lineup", h.GetLineup)
			r.Post("/offers", h.CreateOffer)
			r.Get("/offers", h.ListOffers)
			r.Get("/transactions", h.ListTransactions)
		})

		r.Post("/offers/{offerID}/accept", h.AcceptOffer)
		r.Post("/offers/{offerID}/reject", h.RejectOffer)
	})

	return r
}

// --- Catalog ---

// ListPlayers handles GET /api/v1/players?team=&role=
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	f := refdata.Filter{Team: r.URL.Query().Get("team")}
	if token := r.URL.Query().Get("role"); token != "" {
		role, err := position.Parse(token)
		if err != nil {
			writeRuleError(w, rule(ErrInvalidPosition, map[string]any{"position": token}, "unknown role %q", token))
			return
		}
		f.Role = role
	}

	players, err := h.refs.ListPlayers(r.Context(), f)
	if err != nil {
		log.WithError(err).Error("failed to list players")
		writeError(w, "upstream_unavailable", "failed to load players", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// GetPlayer handles GET /api/v1/players/{playerID}
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.engine.lookup(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		if _, ok := AsRuleError(err); !ok {
			log.WithError(err).Error("failed to look up player")
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// --- Ledger ---

// JoinLeague handles POST /api/v1/leagues/{leagueID}/join
func (h *Handler) JoinLeague(w http.ResponseWriter, r *http.Request) {
	acct, err := h.engine.JoinLeague(r.Context(), userID(r), chi.URLParam(r, "leagueID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// GetRoster handles GET /api/v1/leagues/{leagueID}/roster
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.engine.Roster(r.Context(), userID(r), chi.URLParam(r, "leagueID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// BuyPlayer handles POST /api/v1/leagues/{leagueID}/players/{playerID}/buy
func (h *Handler) BuyPlayer(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.engine.Buy(r.Context(), userID(r), chi.URLParam(r, "leagueID"), chi.URLParam(r, "playerID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// SellPlayer handles POST /api/v1/leagues/{leagueID}/players/{playerID}/sell
func (h *Handler) SellPlayer(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.engine.Sell(r.Context(), userID(r), chi.URLParam(r, "leagueID"), chi.URLParam(r, "playerID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// --- Lineup ---

// SetStarter handles PUT /api/v1/leagues/{leagueID}/lineup
func (h *Handler) SetStarter(w http.ResponseWriter, r *http.Request) {
	var req StarterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.Position == "" {
		writeError(w, "invalid_request", "player_id and position are required", http.StatusBadRequest)
		return
	}
	req.UserID = userID(r)
	req.LeagueID = chi.URLParam(r, "leagueID")

	slot, err := h.engine.SetStarter(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// GetLineup handles GET /api/v1/leagues/{leagueID}/lineup?matchday=
func (h *Handler) GetLineup(w http.ResponseWriter, r *http.Request) {
	matchday := 0
	if s := r.URL.Query().Get("matchday"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, "invalid_request", "matchday must be an integer", http.StatusBadRequest)
			return
		}
		matchday = n
	}

	starters, err := h.engine.GetLineup(r.Context(), userID(r), chi.URLParam(r, "leagueID"), matchday)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starters)
}

// --- Offers ---

// CreateOffer handles POST /api/v1/leagues/{leagueID}/offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return
	}
	req.SellerUserID = userID(r)
	req.LeagueID = chi.URLParam(r, "leagueID")

	offer, err := h.engine.CreateOffer(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

// ListOffers handles GET /api/v1/leagues/{leagueID}/offers
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.engine.ListOffers(r.Context(), userID(r), chi.URLParam(r, "leagueID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

// AcceptOffer handles POST /api/v1/offers/{offerID}/accept
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.engine.AcceptOffer(r.Context(), chi.URLParam(r, "offerID"), userID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// RejectOffer handles POST /api/v1/offers/{offerID}/reject
func (h *Handler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.engine.RejectOffer(r.Context(), chi.URLParam(r, "offerID"), userID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// ListTransactions handles GET /api/v1/leagues/{leagueID}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.engine.Transactions(r.Context(), userID(r), chi.URLParam(r, "leagueID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- Helpers ---

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// statusFor maps a rule kind to its HTTP status.
var statusFor = map[error]int{
	ErrPlayerNotFound:        http.StatusNotFound,
	ErrOfferNotFound:         http.StatusNotFound,
	ErrNotParticipant:        http.StatusForbidden,
	ErrNotAuthorizedForOffer: http.StatusForbidden,
	ErrAlreadyOwned:          http.StatusConflict,
	ErrAlreadyJoined:         http.StatusConflict,
	ErrRosterFull:            http.StatusConflict,
	ErrTeamCapExceeded:       http.StatusConflict,
	ErrPositionCapExceeded:   http.StatusConflict,
	ErrSellerNoLongerOwns:    http.StatusConflict,
	ErrOfferClosed:           http.StatusConflict,
	ErrNotOwned:              http.StatusNotFound,
	ErrInsufficientFunds:     http.StatusUnprocessableEntity,
	ErrPositionMismatch:      http.StatusUnprocessableEntity,
	ErrOfferExpired:          http.StatusGone,
	ErrInvalidPosition:       http.StatusBadRequest,
	ErrInvalidMatchday:       http.StatusBadRequest,
	ErrInvalidOffer:          http.StatusBadRequest,
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if re, ok := AsRuleError(err); ok {
		writeRuleError(w, re)
		return
	}
	// Infrastructure failures are logged where they occur; never leak them.
	writeError(w, "internal", "internal error", http.StatusInternalServerError)
}

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeRuleError(w http.ResponseWriter, re *RuleError) {
	status, ok := statusFor[re.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: re.Kind.Error(), Message: re.Message, Details: re.Details})
}

func writeError(w http.ResponseWriter, code, msg string, status int) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).WithField("status", status).Debug("failed to write response")
	}
}
