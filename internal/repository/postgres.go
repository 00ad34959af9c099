// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/f1bet-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientBalance возвращается при ставке на сумму, превышающую баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBetAlreadySettled возвращается при попытке рассчитать уже рассчитанную ставку.
	ErrBetAlreadySettled = errors.New("bet already settled")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при конфликте сериализации или дедлоке.
// Тело транзакции при повторе выполняется заново целиком, включая
// перечитывание баланса и проверку инвариантов.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, balance::text FROM users WHERE id = $1`,
		id,
	)

	var (
		u          model.User
		balanceStr string
	)
	if err := row.Scan(&u.ID, &balanceStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	u.Balance = balance

	return &u, nil
}

// PlaceBet списывает сумму ставки с баланса пользователя и создаёт ставку
// в одной транзакции. Строка пользователя блокируется на время транзакции,
// поэтому параллельные операции с одним балансом сериализуются.
func (r *PostgresRepository) PlaceBet(ctx context.Context, userID int64, eventID string, driverID int32, amount decimal.Decimal, odds int) (*model.Bet, error) {
	var bet *model.Bet

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var balanceStr string
		err = tx.QueryRow(ctx,
			`SELECT balance::text FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&balanceStr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return fmt.Errorf("parse balance: %w", err)
		}

		if balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET balance = $2 WHERE id = $1`,
			userID, balance.Sub(amount).StringFixed(2),
		)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}

		b := model.Bet{
			UserID:   userID,
			EventID:  eventID,
			DriverID: &driverID,
			Amount:   amount,
			Odds:     odds,
			Status:   model.BetStatusPending,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO bets (user_id, event_id, driver_id, amount, odds, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			userID, eventID, driverID, amount.StringFixed(2), odds, string(model.BetStatusPending),
		).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		bet = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return bet, nil
}

// SettleBet записывает исход ставки и, для выигрышной, начисляет выплату
// её владельцу в одной транзакции. Обновление выполняется только для ставки
// в статусе PENDING: повторный расчёт той же ставки завершается
// ErrBetAlreadySettled без изменения данных. Ошибка начисления откатывает
// и смену статуса, ставка остаётся доступной для расчёта.
func (r *PostgresRepository) SettleBet(ctx context.Context, betID int64, status model.BetStatus, totalAwarded decimal.Decimal) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var userID int64
		err = tx.QueryRow(ctx,
			`UPDATE bets SET status = $2, total_awarded = $3
			 WHERE id = $1 AND status = $4
			 RETURNING user_id`,
			betID, string(status), totalAwarded.StringFixed(2), string(model.BetStatusPending),
		).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBetAlreadySettled
			}
			return fmt.Errorf("update bet: %w", err)
		}

		if status == model.BetStatusWon {
			var balanceStr string
			err = tx.QueryRow(ctx,
				`SELECT balance::text FROM users WHERE id = $1 FOR UPDATE`,
				userID,
			).Scan(&balanceStr)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
				}
				return fmt.Errorf("lock user for update: %w", err)
			}

			balance, err := decimal.NewFromString(balanceStr)
			if err != nil {
				return fmt.Errorf("parse balance: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE users SET balance = $2 WHERE id = $1`,
				userID, balance.Add(totalAwarded).StringFixed(2),
			)
			if err != nil {
				return fmt.Errorf("credit balance: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// GetBetsByEvent возвращает все ставки на событие в порядке их создания.
func (r *PostgresRepository) GetBetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, event_id, driver_id, amount::text, odds, status, total_awarded::text, created_at
		 FROM bets
		 WHERE event_id = $1
		 ORDER BY created_at`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bets: %w", err)
	}
	defer rows.Close()

	return scanBets(rows)
}

// GetBetsByEventAndStatus возвращает ставки на событие в указанном статусе.
func (r *PostgresRepository) GetBetsByEventAndStatus(ctx context.Context, eventID string, status model.BetStatus) ([]model.Bet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, event_id, driver_id, amount::text, odds, status, total_awarded::text, created_at
		 FROM bets
		 WHERE event_id = $1 AND status = $2
		 ORDER BY created_at`,
		eventID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select bets by status: %w", err)
	}
	defer rows.Close()

	return scanBets(rows)
}

func scanBets(rows pgx.Rows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		var (
			b          model.Bet
			amountStr  string
			awardedStr *string
			status     string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.DriverID, &amountStr, &b.Odds, &status, &awardedStr, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		b.Amount = amount
		b.Status = model.BetStatus(status)

		if awardedStr != nil {
			awarded, err := decimal.NewFromString(*awardedStr)
			if err != nil {
				return nil, fmt.Errorf("parse total awarded: %w", err)
			}
			b.TotalAwarded = &awarded
		}

		bets = append(bets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bets, nil
}
