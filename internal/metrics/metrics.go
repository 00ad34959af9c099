// Package metrics содержит счётчики Prometheus и сервер /metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsPlaced считает принятые ставки.
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "f1bet_bets_placed_total",
		Help: "Number of accepted bets.",
	})

	// BetsSettled считает рассчитанные ставки по исходу.
	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "f1bet_bets_settled_total",
		Help: "Number of settled bets by outcome.",
	}, []string{"outcome"})

	// PayoutTotal накапливает сумму всех выплат.
	PayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "f1bet_payout_total",
		Help: "Total amount credited to winners.",
	})
)

// HealthFunc проверяет готовность зависимостей сервиса.
type HealthFunc func(ctx context.Context) error

// StartServer поднимает отдельный HTTP-сервер с /metrics и /healthz.
func StartServer(addr string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
