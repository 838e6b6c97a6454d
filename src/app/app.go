// Package app wires the relay's services together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/config"
	"github.com/stake-plus/multisig-relay/src/data"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/pricing"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stake-plus/multisig-relay/src/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired relay.
type App struct {
	Config     config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Networks   *chain.Registry
	Chains     *Chains
	Store      *store.Store
	Builder    *proposal.Builder
	Dispatcher *notify.Dispatcher
	Reconciler *store.Reconciler
	Server     *webserver.Server

	hook    *notify.Hook
	httpSrv *http.Server
	closers []func()
	lg      *zap.Logger
}

// New connects MySQL and Redis, applies the settings table on top of the
// loader and builds every service. The caller must Close the App.
func New(ctx context.Context, loader *config.Loader, lg *zap.Logger) (*App, error) {
	a := &App{lg: lg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	cfg := loader.Load()
	if cfg.MySQLDSN == "" {
		return nil, errors.New("mysql_dsn is not set")
	}
	db, err := data.ConnectMySQL(cfg.MySQLDSN, lg)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := data.Migrate(db, lg, false); err != nil {
		return nil, err
	}
	if err := loader.Overlay(db); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	cfg = loader.Load()
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret is not set")
	}
	a.Config = cfg

	rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	if a.Networks, err = chain.NewRegistry(db); err != nil {
		return nil, fmt.Errorf("networks: %w", err)
	}
	a.Chains = NewChains(loader.SafeServiceURL, substrate.DialOptions{}, lg)
	a.closers = append(a.closers, a.Chains.Close)

	a.Store = store.New(db, store.NewPendingCache(rdb, cfg.PendingCacheTTL, lg), lg, cfg.FanoutLimit)
	a.hook = notify.NewHook(rdb, cfg.NotifyStream, lg)
	a.closers = append(a.closers, a.hook.Wait)
	a.Builder = proposal.NewBuilder(a.Networks, a.Store, a.Chains, a.hook, lg)
	oracle := pricing.NewOracle(cfg.PriceAPIURL, rdb, cfg.PriceCacheTTL, lg)

	channels, err := a.channels(cfg)
	if err != nil {
		return nil, err
	}
	a.Dispatcher = notify.NewDispatcher(rdb, cfg.NotifyStream, a.Store, notify.Options{}, lg, channels...)
	a.Reconciler = store.NewReconciler(a.Store, a.Networks, NewObserver(a.Chains), oracle, a.closed,
		cfg.ReconcileInterval, lg).RemindAfter(cfg.ReminderInterval, a.remind)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	a.Server = webserver.New(webserver.Deps{
		Config:     cfg,
		Logger:     lg,
		Redis:      rdb,
		Store:      a.Store,
		Networks:   a.Networks,
		Builder:    a.Builder,
		Drafts:     proposal.NewDraftCache(rdb, cfg.DraftTTL),
		Decoder:    decoder.NewService(a.Chains, lg),
		Dispatcher: a.Dispatcher,
		Balances:   a.Chains,
		Prices:     oracle,
		Safes:      a.Chains,
	})
	a.closers = append(a.closers, a.Server.Close)
	a.httpSrv = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// channels builds the delivery channels that have credentials configured.
func (a *App) channels(cfg config.Config) ([]notify.Channel, error) {
	var out []notify.Channel
	if cfg.DiscordToken != "" {
		dc, err := notify.NewDiscordChannel(cfg.DiscordToken)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		a.closers = append(a.closers, func() { _ = dc.Close() })
		out = append(out, dc)
	}
	if cfg.TelegramToken != "" {
		out = append(out, notify.NewTelegramChannel(cfg.TelegramToken, ""))
	}
	if cfg.SlackWebhook != "" {
		out = append(out, notify.NewSlackChannel(cfg.SlackWebhook))
	}
	if cfg.SMTP.Host != "" {
		out = append(out, notify.NewEmailChannel(cfg.SMTP))
	}
	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name())
	}
	a.lg.Info("notification channels", zap.Strings("enabled", names))
	return out, nil
}

// closed tells the signatories that a proposal left the pending set.
func (a *App) closed(ctx context.Context, n types.Network, ms *types.Multisig, h *types.HistoricalTransaction) {
	trigger := notify.TriggerCancelled
	if h.Status == types.StatusExecuted {
		trigger = notify.TriggerExecuted
	}
	ev := notify.NewEvent(trigger, n.Name, ms.Address, h.CallHash, "", ms.SignatoryAddresses())
	ev.Link = chain.ExplorerAddressURL(n, ms.Address)
	a.hook.Dispatch(ctx, ev)
}

// remind asks the signatories still missing from a proposal to approve it.
func (a *App) remind(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction, waiting []string) {
	rcpts, err := notify.ReminderRecipients(ctx, a.Store, waiting, time.Since(tx.CreatedAt))
	if err != nil {
		a.lg.Warn("reminder recipients", zap.String("call_hash", tx.CallHash), zap.Error(err))
		return
	}
	if len(rcpts) == 0 {
		return
	}
	ev := notify.NewEvent(notify.TriggerReminder, n.Name, ms.Address, tx.CallHash, "", rcpts)
	ev.Link = chain.ExplorerAddressURL(n, ms.Address)
	a.hook.Dispatch(ctx, ev)
}

// Run serves HTTP and runs the background workers until ctx is done or one
// of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Dispatcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.Reconciler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.lg.Info("multisig relay listening", zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(shutCtx)
	})
	return g.Wait()
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
