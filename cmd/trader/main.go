package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"mmbot/internal/bus"
	"mmbot/internal/engine"
	"mmbot/internal/feed"
	"mmbot/internal/gateway"
	"mmbot/internal/ledger"
	"mmbot/internal/obs"
	"mmbot/internal/ops"
	"mmbot/internal/position"
	"mmbot/internal/risk"
	"mmbot/internal/schema"
	"mmbot/internal/store"
	"mmbot/internal/submit"
	"mmbot/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("trader: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	profile := flag.Bool("pyroscope", false, "Enable continuous profiling")
	profileAddr := flag.String("pyroscope-addr", "http://localhost:4040", "Pyroscope server address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loaded := ops.Default()
	if *configPath != "" {
		var err error
		if loaded, err = ops.Load(*configPath); err != nil {
			return err
		}
	}
	runtime := ops.NewRuntime(loaded)

	if *profile {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "mmbot/trader",
			ServerAddress:   *profileAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	b := bus.New()
	b.Start()
	defer b.Close()

	emit := func(e schema.Event) {
		if err := b.Publish(e); err != nil {
			metrics.IncBusDrop()
		}
	}

	orders := ledger.New(emit)
	positions := position.New(emit)
	riskEngine := risk.NewEngine(positions, metrics, emit)
	for symbol, limits := range loaded.Risk {
		riskEngine.SetLimits(symbol, limits)
	}
	for _, breaker := range loaded.Breakers {
		riskEngine.RegisterBreaker(breaker)
	}
	riskEngine.StartDailyReset(ctx)
	if *configPath != "" && *configReload > 0 {
		go ops.Watch(ctx, *configPath, *configReload, runtime)
		go applyRiskLimits(ctx, *configReload, runtime, riskEngine)
	}

	gw := gateway.NewClient(loaded.Gateway, nil)
	pipeline := submit.New(loaded.Submit, gw, orders, metrics, emit)
	pipeline.Start(ctx)

	eng := engine.New(engine.Config{
		Tick:       loaded.Tick,
		Strategies: loaded.Strategy,
		Orders:     orders,
		Positions:  positions,
		Risk:       riskEngine,
		Pipeline:   pipeline,
		Metrics:    metrics,
		Emit:       emit,
	})

	if loaded.Store.Enabled {
		client, err := conn.New(conn.Option{
			Host:     loaded.Store.Host,
			Port:     loaded.Store.Port,
			User:     loaded.Store.User,
			Password: loaded.Store.Password,
			Database: loaded.Store.Database,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		journal := store.NewJournal(client.DB())
		if err := journal.Start(ctx, b); err != nil {
			return err
		}
		defer journal.Stop()
	}

	go logAlerts(ctx, b)

	pub := feed.NewHyperliquidPub(ctx, loaded.WsUrl, metrics)
	if err := pub.StartWebsocket(ctx); err != nil {
		return err
	}
	defer pub.Close()
	for _, s := range loaded.Strategy {
		if err := pub.SubscribeBbo(ctx, s.Symbol); err != nil {
			return err
		}
	}
	unsubscribe := pub.ObserveTopOfBook(ctx, eng.OnTopOfBook)
	defer unsubscribe()

	if loaded.Gateway.Key != "" {
		if err := pub.SubscribeUserFills(ctx, loaded.Gateway.Key); err != nil {
			return err
		}
		unsubscribeFills := pub.ObserveFills(ctx, func(f feed.ExchangeFill) {
			ledgerID, ok := pipeline.ResolveExchangeOrder(f.ExchangeOrderID)
			if !ok {
				logs.Warnf("trader: fill for unknown exchange order %s", f.ExchangeOrderID)
				return
			}
			eng.OnFill(schema.Fill{
				OrderID: ledgerID,
				Symbol:  f.Symbol,
				Side:    f.Side,
				Price:   f.Price,
				Size:    f.Size,
				Fee:     f.Fee,
				At:      f.At,
			})
		})
		defer unsubscribeFills()
	}

	eng.Start(ctx)
	logs.Info("trader: running, symbols ", len(loaded.Strategy))
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eng.Stop(shutdownCtx)

	snap := metrics.Snapshot()
	logs.Info("trader: stopped, placed ", snap.OrdersPlaced, " filled ", snap.OrdersFilled)
	return nil
}

// applyRiskLimits folds reloaded limits into the running risk engine. Quote
// parameters and endpoints still need a restart.
func applyRiskLimits(ctx context.Context, interval time.Duration, runtime *ops.Runtime, riskEngine *risk.Engine) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loaded := runtime.Load()
			for symbol, limits := range loaded.Risk {
				riskEngine.SetLimits(symbol, limits)
			}
		}
	}
}

// logAlerts mirrors the risk and engine streams into the log.
func logAlerts(ctx context.Context, b *bus.Bus) {
	riskCh, cancelRisk := b.Subscribe("risk")
	engineCh, cancelEngine := b.Subscribe("engine")
	defer cancelRisk()
	defer cancelEngine()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-riskCh:
			if !ok {
				return
			}
			logAlert(e)
		case e, ok := <-engineCh:
			if !ok {
				return
			}
			logAlert(e)
		}
	}
}

func logAlert(e schema.Event) {
	switch payload := e.Payload.(type) {
	case schema.RiskAlert:
		logs.Warnf("risk alert [%s] %s: %s", payload.Severity, payload.Symbol, payload.Reason)
	case schema.BreakerTrip:
		logs.Warnf("breaker %s tripped for %s until %s", payload.ID, payload.Symbol, payload.Until.Format(time.RFC3339))
	case schema.EngineError:
		logs.Errorf("engine error at %s for %s: %s", payload.Stage, payload.Symbol, payload.Reason)
	case schema.EngineStatus:
		logs.Info("engine running=", payload.Running, " ", payload.Detail)
	}
}
