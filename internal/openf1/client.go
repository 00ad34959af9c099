// Package openf1 предоставляет клиент для внешнего API данных Формулы-1.
package openf1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnavailable возвращается, если внешний API недоступен или не ответил
// вовремя. Вызывающая сторона может повторить запрос позже.
var ErrUnavailable = errors.New("openf1 api unavailable")

// API ограничивает частоту входящих запросов, поэтому клиент держит
// собственный token bucket и ждёт разрешения перед каждым обращением.
const (
	requestsPerSecond = 3
	requestBurst      = 3
)

// Client инкапсулирует HTTP-взаимодействие с API OpenF1.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Session описывает гоночную сессию в ответе API.
type Session struct {
	SessionKey  int32  `json:"session_key"`
	SessionName string `json:"session_name"`
	SessionType string `json:"session_type"`
	Year        int    `json:"year"`
	CountryName string `json:"country_name"`
}

// Driver описывает гонщика сессии в ответе API.
type Driver struct {
	FullName     string `json:"full_name"`
	DriverNumber *int32 `json:"driver_number"`
}

// SessionResult описывает результат гонщика в сессии. API заполняет
// driver_number и driver_id не для всех записей одинаково.
type SessionResult struct {
	DriverNumber *int32 `json:"driver_number"`
	DriverID     *int32 `json:"driver_id"`
}

// Matches сообщает, относится ли запись результата к указанному гонщику.
// Совпадение по любому из идентификаторов считается достаточным.
func (r SessionResult) Matches(driverID int32) bool {
	if r.DriverNumber != nil && *r.DriverNumber == driverID {
		return true
	}
	if r.DriverID != nil && *r.DriverID == driverID {
		return true
	}
	return false
}

// NewClient создаёт HTTP-клиент для обращения к API OpenF1 по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// GetSessions возвращает список сессий с необязательной фильтрацией
// по типу сессии, году и стране.
func (c *Client) GetSessions(ctx context.Context, sessionType string, year *int, country string) ([]Session, error) {
	params := url.Values{}
	if sessionType != "" {
		params.Set("session_type", sessionType)
	}
	if year != nil {
		params.Set("year", strconv.Itoa(*year))
	}
	if country != "" {
		params.Set("country_name", country)
	}

	var sessions []Session
	if err := c.getJSON(ctx, "/sessions", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetDrivers возвращает список гонщиков для указанной сессии.
func (c *Client) GetDrivers(ctx context.Context, sessionKey int32) ([]Driver, error) {
	params := url.Values{}
	params.Set("session_key", strconv.Itoa(int(sessionKey)))

	var drivers []Driver
	if err := c.getJSON(ctx, "/drivers", params, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// GetSessionResults возвращает результаты указанной сессии.
// Пустой список означает, что событие API неизвестно.
func (c *Client) GetSessionResults(ctx context.Context, sessionKey int32) ([]SessionResult, error) {
	params := url.Values{}
	params.Set("session_key", strconv.Itoa(int(sessionKey)))

	var results []SessionResult
	if err := c.getJSON(ctx, "/session_result", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("openf1 client not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
