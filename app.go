package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jdziat/simple-message-scheduler/pkg/config"
	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/engine"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
	"github.com/jdziat/simple-message-scheduler/pkg/httpapi"
	"github.com/jdziat/simple-message-scheduler/pkg/logging"
	"github.com/jdziat/simple-message-scheduler/pkg/service"
	"github.com/jdziat/simple-message-scheduler/pkg/storage"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/bridge"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/mail"
)

// App is the application context: every component built once from a
// config.Config and shared for the life of the process.
type App struct {
	Config  *config.Config
	Logging *logging.Service
	Logger  *slog.Logger

	DB      *gorm.DB
	Store   *storage.GormStorage
	Bus     *events.Bus
	Bridge  *bridge.Client
	Mail    *mail.Sender
	Engine  *engine.Engine
	Service *service.Service
	API     *httpapi.Server

	configPath string
	server     *http.Server

	mu      sync.Mutex
	applied *config.Config
	addr    net.Addr
	started bool
	closed  bool
	cancel  context.CancelFunc
}

// AppOption configures NewApp.
type AppOption interface {
	applyApp(*appOptions)
}

type appOptions struct {
	logWriter   io.Writer
	configPath  string
	mailOpts    []mail.Option
	bridgeOpts  []bridge.Option
	engineOpts  []engine.Option
	storageOpts []storage.Option
}

type appOptionFunc func(*appOptions)

func (f appOptionFunc) applyApp(o *appOptions) { f(o) }

// WithLogWriter sends logs to w instead of stderr.
func WithLogWriter(w io.Writer) AppOption {
	return appOptionFunc(func(o *appOptions) { o.logWriter = w })
}

// WithConfigPath enables hot reload of the file cfg was loaded from.
func WithConfigPath(path string) AppOption {
	return appOptionFunc(func(o *appOptions) { o.configPath = path })
}

// WithMailOptions passes options to the SMTP sender.
func WithMailOptions(opts ...mail.Option) AppOption {
	return appOptionFunc(func(o *appOptions) { o.mailOpts = append(o.mailOpts, opts...) })
}

// WithBridgeOptions passes options to the chat bridge client.
func WithBridgeOptions(opts ...bridge.Option) AppOption {
	return appOptionFunc(func(o *appOptions) { o.bridgeOpts = append(o.bridgeOpts, opts...) })
}

// WithEngineOptions passes options to the trigger engine after the ones
// derived from the configuration.
func WithEngineOptions(opts ...engine.Option) AppOption {
	return appOptionFunc(func(o *appOptions) { o.engineOpts = append(o.engineOpts, opts...) })
}

// WithStorageOptions passes options to the job store.
func WithStorageOptions(opts ...storage.Option) AppOption {
	return appOptionFunc(func(o *appOptions) { o.storageOpts = append(o.storageOpts, opts...) })
}

// NewApp opens the database, runs migrations and wires every component.
// Nothing is armed or served until Start or Run.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := &appOptions{logWriter: os.Stderr}
	for _, opt := range opts {
		opt.applyApp(o)
	}

	logs := logging.NewWithWriter(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, o.logWriter)
	log := logs.Logger()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(DatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := storage.NewGormStorage(db, o.storageOpts...)
	if err := store.Migrate(context.Background()); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	bus := events.New()

	bridgeClient := bridge.New(cfg.Bridge.URL, append([]bridge.Option{
		bridge.WithRateLimit(cfg.Bridge.RatePerSec, cfg.Bridge.Burst),
		bridge.WithLogger(log.With("comp", "bridge")),
	}, o.bridgeOpts...)...)

	mailer := mail.NewSender(MailConfig(cfg), append([]mail.Option{
		mail.WithLogger(log.With("comp", "mail")),
	}, o.mailOpts...)...)

	transports := core.Transports{Text: bridgeClient, Video: bridgeClient}
	if err := mailer.Config().Validate(); err != nil {
		log.Warn("smtp not configured; email jobs will fail", "error", err)
	} else {
		transports.Email = mailer
	}

	engOpts := append([]engine.Option{
		engine.WithLogger(log.With("comp", "engine")),
		engine.WithTimeout(core.KindText, cfg.Engine.TextTimeout.D()),
		engine.WithTimeout(core.KindVideo, cfg.Engine.VideoTimeout.D()),
		engine.WithTimeout(core.KindEmail, cfg.Engine.EmailTimeout.D()),
		engine.WithStoreTimeout(cfg.Engine.StoreTimeout.D()),
	}, o.engineOpts...)
	eng := engine.New(store, dispatch.NewRegistry(), transports, bus, engOpts...)

	svc := service.New(store, eng, bus,
		service.WithLogger(log.With("comp", "service")),
		service.WithSweepInterval(cfg.Engine.SweepInterval.D()),
		service.WithRetention(cfg.Engine.Retention.D()),
		service.WithLocation(loc),
	)

	// Debug mode prints every route at startup. GIN_MODE and test binaries
	// that chose a mode keep theirs.
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	api := httpapi.New(svc,
		httpapi.WithLogger(log.With("comp", "http")),
		httpapi.WithLocation(loc),
		httpapi.WithBridgeStatus(bridgeClient),
	)

	a := &App{
		applied:    cfg,
		Config:     cfg,
		Logging:    logs,
		Logger:     log,
		DB:         db,
		Store:      store,
		Bus:        bus,
		Bridge:     bridgeClient,
		Mail:       mailer,
		Engine:     eng,
		Service:    svc,
		API:        api,
		configPath: o.configPath,
	}
	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout.D(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.D(),
		WriteTimeout:      cfg.Server.WriteTimeout.D(),
	}
	return a, nil
}

// DatabaseConfig maps the database section to storage.Config.
func DatabaseConfig(cfg *config.Config) storage.Config {
	pool := storage.DefaultPoolConfig()
	if cfg.Database.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime.D()
	}
	return storage.Config{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
		Pool:     pool,
	}
}

// MailConfig maps the smtp section to mail.Config.
func MailConfig(cfg *config.Config) mail.Config {
	return mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		StartTLS: cfg.SMTP.StartTLS,
	}
}

// Start restores pending jobs and starts housekeeping. It does not serve HTTP.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.started = true
	a.cancel = cancel
	a.mu.Unlock()

	go a.logEvents(bg)
	if a.configPath != "" {
		w := config.NewWatcher(a.configPath, a.Config, a.Logger.With("comp", "config"))
		go func() {
			if err := w.Watch(bg, a.applyConfig); err != nil && bg.Err() == nil {
				a.Logger.Warn("config watch stopped", "error", err)
			}
		}()
	}
	return a.Service.Start(ctx)
}

// Run starts the app, listens on the configured address and blocks until ctx
// is cancelled or the server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Config.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", ln.Addr().String())
		serveErr <- a.server.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	timeout := a.Config.Server.ShutdownTimeout.D()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Addr returns the listening address once Serve has started.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Shutdown stops the HTTP server, waits for in-flight deliveries and closes
// the database. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		defer cancel()
	}

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.Service.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("service stop: %w", err))
	}
	if err := closeDB(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	a.Logger.Info("scheduler stopped")
	return errors.Join(errs...)
}

// applyConfig handles a reloaded file. Only the log level changes at runtime;
// the other sections are compared with the previous reload, not the startup
// config, so each change is reported once.
func (a *App) applyConfig(next *config.Config) {
	a.mu.Lock()
	prev := a.applied
	a.applied = next
	a.mu.Unlock()

	restart := a.Logging.Apply(logging.Config{Level: next.Log.Level, Format: next.Log.Format})
	if restart {
		a.Logger.Warn("log format changed; restart required")
	}
	if next.Server != prev.Server || next.Database != prev.Database {
		a.Logger.Warn("server or database config changed; restart required")
	}
}

// logEvents writes lifecycle events at debug level.
func (a *App) logEvents(ctx context.Context) {
	ch := a.Bus.Events()
	defer a.Bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			a.Logger.Debug("event", "type", fmt.Sprintf("%T", e))
		}
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
