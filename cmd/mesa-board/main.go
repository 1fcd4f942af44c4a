// Board client entry point: keeps a live view of the order list (or one
// tracked order) fresh via background polling and prints it to the
// terminal. Also rehydrates the session's draft order so a restart picks
// up the cart where it left off.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"mesa/internal/backend"
	"mesa/internal/config"
	"mesa/internal/controller"
	"mesa/internal/infra"
	"mesa/internal/metrics"
	"mesa/internal/modules/cart"
	"mesa/internal/modules/order"
	"mesa/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Draft orders live in Redis under the session key; a fresh session id
	// simply starts with an empty draft.
	session := os.Getenv("MESA_SESSION")
	if session == "" {
		session = uuid.NewString()
	}
	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()
	draft := cart.NewService(ctx, cart.NewRedisStorage(redisClient), session)
	if q := draft.TotalQuantity(); q > 0 {
		logger.Info("draft restored", "items", q, "amount", draft.TotalAmount().String())
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)
	var roles backend.RoleSource = backend.NewTokenRoles(cfg.Backend.Token)
	if cfg.Backend.Token == "" {
		roles = backend.StaticRoles{"manager"}
	}

	reg := prometheus.NewRegistry()
	pollMetrics := metrics.NewPollMetrics(reg)

	if len(os.Args) > 1 {
		trackOne(ctx, client, roles, pollMetrics, cfg, logger, os.Args[1])
		return
	}

	list := controller.NewList(client, roles,
		controller.WithInterval(cfg.Poll.Interval),
		controller.WithLogger(logger),
		controller.WithMetrics(pollMetrics),
	)
	if err := list.Start(ctx); err != nil {
		logger.Error("initial load failed", "err", err)
		os.Exit(1)
	}
	defer list.Stop()

	render := time.NewTicker(cfg.Poll.Interval)
	defer render.Stop()
	printOrders(list.Orders())
	for {
		select {
		case <-ctx.Done():
			return
		case <-render.C:
			printOrders(list.Orders())
		}
	}
}

func trackOne(ctx context.Context, client *backend.Client, roles backend.RoleSource, m *metrics.PollMetrics, cfg config.Config, logger *slog.Logger, arg string) {
	id, err := parseOrderID(arg)
	if err != nil {
		logger.Error("invalid order id", "arg", arg)
		os.Exit(2)
	}
	detail := controller.NewDetail(client, roles, id,
		controller.WithInterval(cfg.Poll.Interval),
		controller.WithLogger(logger),
		controller.WithMetrics(m),
	)
	if err := detail.Start(ctx); err != nil {
		logger.Error("initial load failed", "err", err)
		os.Exit(1)
	}
	defer detail.Stop()

	render := time.NewTicker(cfg.Poll.Interval)
	defer render.Stop()
	printOrder(detail.Order(), detail.Actions())
	for {
		select {
		case <-ctx.Done():
			return
		case <-render.C:
			printOrder(detail.Order(), detail.Actions())
		}
	}
}

func printOrders(orders []order.Order) {
	now := time.Now()
	fmt.Printf("-- %s  (%d orders)\n", now.Format("15:04:05"), len(orders))
	for _, o := range orders {
		fmt.Println(formatLine(o, now))
	}
}

func printOrder(o *order.Order, actions []order.Status) {
	if o == nil {
		return
	}
	fmt.Println(formatLine(*o, time.Now()))
	if len(actions) > 0 {
		fmt.Printf("   next: %v\n", actions)
	}
}

func formatLine(o order.Order, now time.Time) string {
	label := string(o.Status)
	if m, err := order.MetaFor(o.Status); err == nil {
		label = m.Label
	} else {
		// Unknown states are a data defect; show them loudly instead of
		// coercing to something presentable.
		label = "?" + label + "?"
	}
	late := ""
	if o.Late(now) {
		late = "  LATE"
	}
	return fmt.Sprintf("#%d  branch %d  %-16s %s%s", o.ID, o.BranchID, label, o.Total.String(), late)
}

func parseOrderID(s string) (types.ID, error) {
	return types.ParseID(s)
}
