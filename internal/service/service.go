// Package service реализует бизнес-логику сервиса ставок f1bet.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/f1bet-system/internal/metrics"
	"github.com/mmeshcher/f1bet-system/internal/model"
	"github.com/mmeshcher/f1bet-system/internal/openf1"
	"github.com/mmeshcher/f1bet-system/internal/repository"
)

// ErrEventNotFound возвращается, если внешний API не знает такого события.
var (
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidEventID возвращается, если идентификатор события не является ключом сессии.
	ErrInvalidEventID = errors.New("invalid event id")
	// ErrDriverNotInEvent возвращается, если гонщик не участвует в событии.
	ErrDriverNotInEvent = errors.New("driver not part of this event")
	// ErrInvalidAmount возвращается при неположительной сумме ставки.
	ErrInvalidAmount = errors.New("bet amount must be positive")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	PlaceBet(ctx context.Context, userID int64, eventID string, driverID int32, amount decimal.Decimal, odds int) (*model.Bet, error)
	SettleBet(ctx context.Context, betID int64, status model.BetStatus, totalAwarded decimal.Decimal) error
	GetBetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error)
	GetBetsByEventAndStatus(ctx context.Context, eventID string, status model.BetStatus) ([]model.Bet, error)
}

// EventsAPI описывает контракт внешнего API гоночных данных.
type EventsAPI interface {
	GetSessions(ctx context.Context, sessionType string, year *int, country string) ([]openf1.Session, error)
	GetDrivers(ctx context.Context, sessionKey int32) ([]openf1.Driver, error)
	GetSessionResults(ctx context.Context, sessionKey int32) ([]openf1.SessionResult, error)
}

// ResultsCache описывает кэш результатов сессий перед внешним API.
type ResultsCache interface {
	GetSessionResults(ctx context.Context, sessionKey int32) ([]openf1.SessionResult, bool)
	SetSessionResults(ctx context.Context, sessionKey int32, results []openf1.SessionResult)
}

// OddsSource выдаёт коэффициент для новой ставки.
type OddsSource interface {
	Odds() int
}

// RandomOdds выдаёт равномерно случайный коэффициент из диапазона [2,4].
type RandomOdds struct{}

// Odds возвращает случайный коэффициент.
func (RandomOdds) Odds() int {
	return rand.Intn(3) + 2
}

// Service содержит бизнес-логику сервиса ставок.
type Service struct {
	repo  Repository
	api   EventsAPI
	cache ResultsCache
	odds  OddsSource
}

// NewService создаёт новый сервис с указанными зависимостями.
func NewService(repo Repository, api EventsAPI, cache ResultsCache, odds OddsSource) *Service {
	return &Service{
		repo:  repo,
		api:   api,
		cache: cache,
		odds:  odds,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// PlaceBet принимает ставку: проверяет пользователя, событие и участие
// гонщика, затем атомарно списывает сумму и создаёт ставку в статусе PENDING.
func (s *Service) PlaceBet(ctx context.Context, userID int64, eventID string, driverID int32, amount decimal.Decimal) (*model.Bet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	sessionKey, err := strconv.Atoi(eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventID, eventID)
	}

	results, err := s.sessionResults(ctx, int32(sessionKey))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: session key %d", ErrEventNotFound, sessionKey)
	}

	driverFound := false
	for _, res := range results {
		if res.Matches(driverID) {
			driverFound = true
			break
		}
	}
	if !driverFound {
		return nil, ErrDriverNotInEvent
	}

	bet, err := s.repo.PlaceBet(ctx, userID, eventID, driverID, amount, s.odds.Odds())
	if err != nil {
		return nil, err
	}

	metrics.BetsPlaced.Inc()

	return bet, nil
}

// BetsByEvent возвращает все ставки на событие.
func (s *Service) BetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error) {
	return s.repo.GetBetsByEvent(ctx, eventID)
}

// SettleEvent рассчитывает все незакрытые ставки на событие. Каждая ставка
// обрабатывается независимо: ошибка расчёта одной не останавливает остальные,
// собранные ошибки возвращаются после прохода по всему списку. Повторный вызов
// не находит уже рассчитанных ставок и не меняет балансы.
func (s *Service) SettleEvent(ctx context.Context, eventID string, winningDriverID int32) error {
	bets, err := s.repo.GetBetsByEventAndStatus(ctx, eventID, model.BetStatusPending)
	if err != nil {
		return fmt.Errorf("load pending bets: %w", err)
	}

	var errs []error
	for _, bet := range bets {
		status := model.BetStatusLost
		awarded := decimal.Zero

		if bet.DriverID != nil && *bet.DriverID == winningDriverID {
			status = model.BetStatusWon
			awarded = bet.Amount.Mul(decimal.NewFromInt(int64(bet.Odds)))
		}

		if err := s.repo.SettleBet(ctx, bet.ID, status, awarded); err != nil {
			// Ставку успела закрыть параллельная операция, пропускаем.
			if errors.Is(err, repository.ErrBetAlreadySettled) {
				continue
			}
			errs = append(errs, fmt.Errorf("settle bet %d: %w", bet.ID, err))
			continue
		}

		metrics.BetsSettled.WithLabelValues(string(status)).Inc()
		if status == model.BetStatusWon {
			metrics.PayoutTotal.Add(awarded.InexactFloat64())
		}
	}

	return errors.Join(errs...)
}

// Events возвращает страницу гоночных сессий с маркетом гонщиков.
func (s *Service) Events(ctx context.Context, sessionType string, year *int, country string, page, size int) ([]model.Event, error) {
	if size < 1 {
		size = 1
	}
	if size > 30 {
		size = 30
	}
	if page < 0 {
		page = 0
	}

	sessions, err := s.api.GetSessions(ctx, sessionType, year, country)
	if err != nil {
		return nil, err
	}

	from := page * size
	if from >= len(sessions) {
		return []model.Event{}, nil
	}
	to := from + size
	if to > len(sessions) {
		to = len(sessions)
	}

	events := make([]model.Event, 0, to-from)
	for _, session := range sessions[from:to] {
		drivers, err := s.api.GetDrivers(ctx, session.SessionKey)
		if err != nil {
			return nil, err
		}

		market := make([]model.Driver, 0, len(drivers))
		for _, d := range drivers {
			var number int32
			if d.DriverNumber != nil {
				number = *d.DriverNumber
			}
			market = append(market, model.Driver{
				FullName:     d.FullName,
				DriverNumber: number,
				Odds:         s.odds.Odds(),
			})
		}

		events = append(events, model.Event{
			SessionKey:   session.SessionKey,
			SessionName:  session.SessionName,
			SessionType:  session.SessionType,
			Year:         session.Year,
			Country:      session.CountryName,
			DriverMarket: market,
		})
	}

	return events, nil
}

// sessionResults возвращает результаты сессии, по возможности из кэша.
// Кэшируются только непустые ответы: отсутствующее событие может появиться позже.
func (s *Service) sessionResults(ctx context.Context, sessionKey int32) ([]openf1.SessionResult, error) {
	if s.cache != nil {
		if results, ok := s.cache.GetSessionResults(ctx, sessionKey); ok {
			return results, nil
		}
	}

	results, err := s.api.GetSessionResults(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(results) > 0 {
		s.cache.SetSessionResults(ctx, sessionKey, results)
	}

	return results, nil
}
