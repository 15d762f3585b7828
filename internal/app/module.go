package app

import (
	"context"
	"errors"
	"io/fs"

	"github.com/tmendonca/loop/internal/auth"
	"github.com/tmendonca/loop/internal/bus"
	"github.com/tmendonca/loop/internal/cache"
	"github.com/tmendonca/loop/internal/chat"
	"github.com/tmendonca/loop/internal/config"
	"github.com/tmendonca/loop/internal/feed"
	"github.com/tmendonca/loop/internal/lock"
	"github.com/tmendonca/loop/internal/logging"
	"github.com/tmendonca/loop/internal/realtime"
	"github.com/tmendonca/loop/internal/rest"
	"github.com/tmendonca/loop/internal/session"
	"github.com/tmendonca/loop/internal/status"
	"github.com/tmendonca/loop/internal/store"
	intsync "github.com/tmendonca/loop/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the engine, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("loop",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideCredentialStore,
			provideGate,
			provideGateway,
			provideAuthService,
			provideChannel,
			provideTypingTracker,
			provideChatList,
			provideMessageStore,
			provideChatService,
			provideFeedService,
			provideCoordinator,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if saveErr := config.Save(session.ConfigPath(), cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}
	return cfg, err
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentialStore(b *bus.Bus) *auth.Store {
	return auth.NewStore(b)
}

func provideGate() *auth.Gate {
	return auth.NewGate()
}

func provideGateway(cfg *config.Config, creds *auth.Store, gate *auth.Gate, logger *zap.Logger) *rest.Gateway {
	return rest.NewGateway(cfg.APIBaseURL, cfg.HTTPTimeout(), creds, gate, logger)
}

func provideAuthService(gw *rest.Gateway, creds *auth.Store, logger *zap.Logger) *auth.Service {
	return auth.NewService(gw, creds, logger)
}

func provideChannel(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *realtime.Channel {
	return realtime.NewChannel(cfg.SocketURL, b, logger)
}

func provideTypingTracker(cfg *config.Config, ch *realtime.Channel) *realtime.Tracker {
	return realtime.NewTracker(ch, cfg.TypingDebounce())
}

func provideChatList(b *bus.Bus) *store.ChatListStore {
	return store.NewChatList(b)
}

func provideMessageStore(b *bus.Bus) *store.MessageStore {
	return store.NewMessageStore(b)
}

func provideChatService(cfg *config.Config, gw *rest.Gateway, creds *auth.Store, chats *store.ChatListStore, msgs *store.MessageStore, ch *realtime.Channel, logger *zap.Logger) *chat.Service {
	return chat.NewService(gw, creds, chats, msgs, ch, logger, cfg.ChatPageSize, cfg.MessagePageSize)
}

func provideFeedService(cfg *config.Config, gw *rest.Gateway, logger *zap.Logger) *feed.Service {
	return feed.NewService(gw, logger, cfg.ChatPageSize)
}

func provideCoordinator(b *bus.Bus, creds *auth.Store, chats *store.ChatListStore, msgs *store.MessageStore, ch *realtime.Channel, machine *status.Machine, db *cache.DB, logger *zap.Logger) *intsync.Coordinator {
	return intsync.NewCoordinator(b, creds, chats, msgs, ch, machine, db, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, coord *intsync.Coordinator, ch *realtime.Channel, tracker *realtime.Tracker, authSvc *auth.Service, chatSvc *chat.Service, chats *store.ChatListStore, creds *auth.Store, machine *status.Machine, db *cache.DB, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Reconciliation must be live before any socket event can arrive.
			coord.Start()

			// Seed the chat list from the cache so an embedding UI has
			// something to show before the first page lands.
			if cached, err := db.ListChats(cfg.ChatPageSize); err != nil {
				logger.Warn("cache warm-up failed", zap.Error(err))
			} else if len(cached) > 0 {
				chats.Seed(cached)
				logger.Info("chat list seeded from cache", zap.Int("chats", len(cached)))
			}

			go func() {
				ctx := context.Background()
				if err := authSvc.Resume(ctx); err != nil {
					logger.Info("no resumable session, login required", zap.Error(err))
					_ = machine.Transition(status.LoggedOut)
					return
				}
				_ = machine.Transition(status.Connecting)
				if err := ch.Connect(ctx, creds.ViewerID()); err != nil {
					logger.Error("socket connect failed", zap.Error(err))
					_ = machine.Transition(status.Degraded)
				}
				if err := chatSvc.LoadNextChatPage(ctx); err != nil {
					logger.Warn("initial chat page load failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			tracker.Stop()
			coord.Stop()
			if err := ch.Close(); err != nil {
				logger.Warn("error closing socket", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("engine stopped")
			return nil
		},
	})
}
