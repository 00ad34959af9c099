// Package model содержит доменные сущности сервиса ставок f1bet.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет пользователя с балансом игрового счёта.
type User struct {
	ID      int64
	Balance decimal.Decimal
}

// BetStatus описывает статус ставки.
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWon     BetStatus = "WON"
	BetStatusLost    BetStatus = "LOST"
)

// Bet описывает ставку пользователя на гонщика в рамках события.
// DriverID и TotalAwarded допускают NULL: гонщик может отсутствовать в записи,
// итоговая выплата появляется только после расчёта события.
type Bet struct {
	ID           int64
	UserID       int64
	EventID      string
	DriverID     *int32
	Amount       decimal.Decimal
	Odds         int
	Status       BetStatus
	TotalAwarded *decimal.Decimal
	CreatedAt    time.Time
}

// Driver описывает гонщика в маркете события.
type Driver struct {
	FullName     string `json:"fullName"`
	DriverNumber int32  `json:"driverNumber"`
	Odds         int    `json:"odds"`
}

// Event описывает гоночную сессию, полученную из внешнего API.
type Event struct {
	SessionKey   int32    `json:"sessionKey"`
	SessionName  string   `json:"sessionName"`
	SessionType  string   `json:"sessionType"`
	Year         int      `json:"year"`
	Country      string   `json:"country"`
	DriverMarket []Driver `json:"driverMarket"`
}
