package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/authsession"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/socialauth"
	"github.com/aussiebroadwan/authsession/pkg/webauth"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the session manager and everything under it.
type Application struct {
	cfg    Config
	logger *slog.Logger

	console *Console
	store   credstore.Store
	closers []io.Closer

	client    *authsdk.SDKClient
	bridge    *webauth.Bridge
	manager   *authsession.Manager
	exchanges map[authsdk.Provider]*socialauth.Exchanger
}

type Option func(*options)

type options struct {
	console   *Console
	logOutput io.Writer
	factory   webauth.SessionFactory
}

// WithConsole sets the terminal used for prompts and web sign-in.
func WithConsole(c *Console) Option {
	return func(o *options) { o.console = c }
}

// WithLogOutput redirects logs; stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithSessionFactory replaces the console web sign-in.
func WithSessionFactory(f webauth.SessionFactory) Option {
	return func(o *options) { o.factory = f }
}

// New creates a new Application with all dependencies initialised.
func New(ctx context.Context, cfg Config, opts ...Option) (*Application, error) {
	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.console == nil {
		o.console = NewConsole(os.Stdin, os.Stdout)
	}
	if o.factory == nil {
		o.factory = o.console.SessionFactory()
	}

	app := &Application{
		cfg:     cfg,
		console: o.console,
		logger: slogx.New(slogx.Config{
			Service: "authsession",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  o.logOutput,
		}),
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if err := app.initSession(o.factory); err != nil {
		_ = app.Close()
		return nil, err
	}

	if err := app.initExchangers(); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

// initStore opens the configured credential store.
func (app *Application) initStore(ctx context.Context) error {
	store, closer, err := OpenStore(ctx, app.cfg.Storage, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	app.store = store
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	app.logger.Debug("credential store ready", "driver", app.cfg.Storage.Driver)
	return nil
}

// initSession builds the sender, endpoint client, web bridge and manager.
func (app *Application) initSession(factory webauth.SessionFactory) error {
	mode, err := authsdk.ParseRefreshMode(app.cfg.RefreshMode)
	if err != nil {
		return err
	}

	sender, err := authsdk.NewHTTPSender(authsdk.SenderConfig{
		BaseURL: app.cfg.BaseURL,
		Timeout: app.cfg.HTTPTimeout,
		RateLimit: httpx.RateLimitConfig{
			RequestsPerSecond: app.cfg.RateLimitRPS,
			Burst:             app.cfg.RateLimitBurst,
		},
		Logger: app.logger,
	})
	if err != nil {
		return err
	}

	app.client = authsdk.NewSDKClient(sender, app.store, authsdk.Config{
		RefreshMode: mode,
		Logger:      app.logger.With("component", "authsdk"),
	})

	app.bridge, err = webauth.NewBridge(webauth.Config{
		BaseURL:         app.cfg.BaseURL,
		RedirectScheme:  app.cfg.RedirectScheme,
		PreferEphemeral: app.cfg.EphemeralWebSession,
		Logger:          app.logger.With("component", "webauth"),
	}, factory, app.store)
	if err != nil {
		return err
	}

	app.manager = authsession.New(app.client, app.bridge, authsession.Config{
		Providers: app.cfg.Providers.Enabled(),
		Logger:    app.logger.With("component", "authsession"),
	})

	app.logger.Debug("session wired",
		"base_url", sender.BaseURL().String(),
		"refresh_mode", string(app.client.RefreshMode()),
	)
	return nil
}

// initExchangers sets up native sign-in for every provider with an app
// registration.
func (app *Application) initExchangers() error {
	app.exchanges = make(map[authsdk.Provider]*socialauth.Exchanger)

	regs := map[authsdk.Provider]SocialProviderConfig{
		authsdk.ProviderMicrosoft: app.cfg.Social.Microsoft,
		authsdk.ProviderGoogle:    app.cfg.Social.Google,
		authsdk.ProviderFacebook:  app.cfg.Social.Facebook,
	}

	for provider, reg := range regs {
		if !reg.Configured() {
			continue
		}

		ex, err := socialauth.NewExchanger(provider, socialauth.ProviderConfig{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			RedirectURL:  reg.RedirectURL,
			Tenant:       app.cfg.Social.MicrosoftTenant,
		}, socialauth.WithLogger(app.logger.With("component", "socialauth")))
		if err != nil {
			return fmt.Errorf("native %s sign-in: %w", provider, err)
		}
		app.exchanges[provider] = ex
	}
	return nil
}

func (app *Application) Manager() *authsession.Manager { return app.manager }
func (app *Application) Store() credstore.Store        { return app.store }
func (app *Application) Console() *Console             { return app.console }
func (app *Application) Logger() *slog.Logger          { return app.logger }

// Exchanger returns the native sign-in for provider, if configured.
func (app *Application) Exchanger(p authsdk.Provider) (*socialauth.Exchanger, bool) {
	ex, ok := app.exchanges[p]
	return ex, ok
}

// Close releases storage connections.
func (app *Application) Close() error {
	var errs []error
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error("error closing credential store", "error", err)
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
