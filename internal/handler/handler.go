// Package handler содержит HTTP-обработчики API сервиса f1bet.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/f1bet-system/internal/model"
	"github.com/mmeshcher/f1bet-system/internal/openf1"
	"github.com/mmeshcher/f1bet-system/internal/repository"
	"github.com/mmeshcher/f1bet-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	PlaceBet(ctx context.Context, userID int64, eventID string, driverID int32, amount decimal.Decimal) (*model.Bet, error)
	BetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error)
	SettleEvent(ctx context.Context, eventID string, winningDriverID int32) error
	Events(ctx context.Context, sessionType string, year *int, country string, page, size int) ([]model.Event, error)
}

// Handler реализует HTTP-обработчики API сервиса f1bet.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// apiError описывает тело ответа об ошибке.
type apiError struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := apiError{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleServiceError транслирует ошибки бизнес-логики в HTTP-статусы.
// Непредвиденные ошибки логируются и отдаются без деталей реализации.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrEventNotFound):
		writeError(w, r, http.StatusNotFound, "Event not found")
	case errors.Is(err, service.ErrInvalidEventID):
		writeError(w, r, http.StatusBadRequest, "eventId must be a session key")
	case errors.Is(err, service.ErrDriverNotInEvent):
		writeError(w, r, http.StatusBadRequest, "Driver not part of this event")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, "amount must be greater than 0")
	case errors.Is(err, repository.ErrInsufficientBalance):
		writeError(w, r, http.StatusPaymentRequired, "Insufficient balance")
	case errors.Is(err, openf1.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "Race data provider is unavailable, retry later")
	default:
		h.logger.Error("internal error", zap.Error(err), zap.String("path", r.URL.Path))
		writeError(w, r, http.StatusInternalServerError, "Unexpected error")
	}
}

type placeBetRequest struct {
	UserID   int64           `json:"userId"`
	EventID  string          `json:"eventId"`
	DriverID int32           `json:"driverId"`
	Amount   decimal.Decimal `json:"amount"`
}

type betResponse struct {
	UserID       int64            `json:"userId"`
	BetID        int64            `json:"betId"`
	Status       string           `json:"status"`
	BetAmount    decimal.Decimal  `json:"betAmount"`
	Odds         int              `json:"odds"`
	TotalAwarded *decimal.Decimal `json:"totalAwarded"`
}

func toBetResponse(bet *model.Bet) betResponse {
	return betResponse{
		UserID:       bet.UserID,
		BetID:        bet.ID,
		Status:       string(bet.Status),
		BetAmount:    bet.Amount,
		Odds:         bet.Odds,
		TotalAwarded: bet.TotalAwarded,
	}
}

// PlaceBet принимает ставку пользователя на гонщика в событии.
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed JSON request")
		return
	}

	if req.UserID <= 0 {
		writeError(w, r, http.StatusBadRequest, "userId must be positive")
		return
	}
	if req.EventID == "" {
		writeError(w, r, http.StatusBadRequest, "eventId must be provided")
		return
	}
	if req.DriverID <= 0 {
		writeError(w, r, http.StatusBadRequest, "driverId must be positive")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be greater than 0")
		return
	}

	bet, err := h.service.PlaceBet(r.Context(), req.UserID, req.EventID, req.DriverID, req.Amount)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toBetResponse(bet)); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// GetBetsByEvent возвращает список ставок на событие.
func (h *Handler) GetBetsByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		writeError(w, r, http.StatusBadRequest, "eventId must be provided")
		return
	}

	bets, err := h.service.BetsByEvent(r.Context(), eventID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := make([]betResponse, 0, len(bets))
	for i := range bets {
		resp = append(resp, toBetResponse(&bets[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type processOutcomeRequest struct {
	EventID         string `json:"eventId"`
	WinningDriverID int32  `json:"winningDriverId"`
}

// ProcessEventOutcome рассчитывает все незакрытые ставки на событие.
func (h *Handler) ProcessEventOutcome(w http.ResponseWriter, r *http.Request) {
	var req processOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed JSON request")
		return
	}

	if req.EventID == "" {
		writeError(w, r, http.StatusBadRequest, "eventId must be provided")
		return
	}
	if req.WinningDriverID <= 0 {
		writeError(w, r, http.StatusBadRequest, "winningDriverId must be positive")
		return
	}

	if err := h.service.SettleEvent(r.Context(), req.EventID, req.WinningDriverID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetEvents возвращает страницу гоночных сессий с маркетом гонщиков.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var year *int
	if v := q.Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = &parsed
	}

	page := 0
	if v := q.Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = parsed
	}

	size := 10
	if v := q.Get("size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "size must be an integer")
			return
		}
		size = parsed
	}

	events, err := h.service.Events(r.Context(), q.Get("sessionType"), year, q.Get("country"), page, size)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// Ping проверяет доступность сервиса.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
