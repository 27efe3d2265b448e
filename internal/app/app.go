// Package app wires the collectors, analyzers, storage and delivery
// channels into the running monitor process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"macromon/internal/analyze"
	"macromon/internal/calendar"
	"macromon/internal/collect"
	"macromon/internal/config"
	"macromon/internal/notify"
	"macromon/internal/report"
	"macromon/internal/runtime/supervisor"
	"macromon/internal/store"
	logx "macromon/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger
	sup  *supervisor.Supervisor

	resolver *calendar.Resolver
	econ     *collect.EconomicCollector
	market   *collect.MarketCollector
	bonds    *collect.BondCollector
	fed      *collect.FedWireCollector

	releases *analyze.ReleaseAnalyzer
	regimes  *analyze.RegimeAnalyzer

	db       *store.Store
	renderer *report.Renderer
	notifier *notify.Service

	cron *cron.Cron

	marketInterval time.Duration
	minImportance  calendar.Importance
	reportLoc      *time.Location

	state pipelineState
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	resolver, err := buildResolver(cfg, log)
	if err != nil {
		return nil, err
	}

	client := collect.NewClient(
		collect.WithTimeout(cfg.CollectTimeout()),
		collect.WithRetry(cfg.Collect.RetryMax, cfg.CollectRetryBase()),
		collect.WithRatePerSec(cfg.Collect.RatePerSec),
		collect.WithLogger(log.With(logx.String("comp", "collect"))),
	)

	marketCollector := collect.NewMarketCollector(client)

	db, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.StorageBusyTimeout(),
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	minImportance := calendar.ImportanceMedium
	if cfg.Report.MinImportance != "" {
		if imp, err := calendar.ParseImportance(cfg.Report.MinImportance); err == nil {
			minImportance = imp
		}
	}

	loc := cfg.ReportLocation()

	return &App{
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log,
		resolver: resolver,
		econ:     collect.NewEconomicCollector(client, cfg.Collect.FredAPIKey, cfg.Collect.BLSAPIKey),
		market:   marketCollector,
		bonds:    collect.NewBondCollector(marketCollector),
		fed:      collect.NewFedWireCollector(client),
		releases: analyze.NewReleaseAnalyzer(cfg.Analysis.SurpriseThreshold),
		regimes: analyze.NewRegimeAnalyzer(analyze.VIXThresholds{
			Low:      cfg.Analysis.VIXLow,
			Elevated: cfg.Analysis.VIXElevated,
			High:     cfg.Analysis.VIXHigh,
		}),
		db:             db,
		renderer:       renderer,
		notifier:       notifier,
		cron:           cron.New(cron.WithLocation(loc)),
		marketInterval: cfg.MarketInterval(),
		minImportance:  minImportance,
		reportLoc:      loc,
	}, nil
}

func buildResolver(cfg *config.Config, log logx.Logger) (*calendar.Resolver, error) {
	cal, err := calendar.LoadFile(cfg.Calendar.Path)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	log.Info("calendar loaded",
		logx.String("path", cfg.Calendar.Path),
		logx.Int("indicators", cal.Len()))

	opts := []calendar.ResolverOption{
		calendar.WithOptions(calendar.Options{
			MidMonthDay:      cfg.Calendar.MidMonthDay,
			QuarterOffsetDay: cfg.Calendar.QuarterOffsetDay,
			HorizonDays:      cfg.Calendar.HorizonDays,
		}),
	}
	if cfg.Calendar.FOMCIcs != "" {
		ids := make([]string, 0, cal.Len())
		for _, d := range cal.All() {
			if d.Pattern.Kind == calendar.KindExternal {
				ids = append(ids, d.ID)
			}
		}
		prov, err := calendar.LoadICSFile(cfg.Calendar.FOMCIcs, ids)
		if err != nil {
			return nil, fmt.Errorf("load meeting schedule: %w", err)
		}
		opts = append(opts, calendar.WithDateProvider(prov))
	}
	return calendar.NewResolver(cal, opts...), nil
}

func buildNotifier(cfg *config.Config, log logx.Logger) (*notify.Service, error) {
	var channels []notify.Channel
	if cfg.Email != nil && cfg.Email.Enabled {
		ch, err := notify.NewEmailChannel(notify.EmailConfig{
			Host:       cfg.Email.SMTPHost,
			Port:       cfg.Email.SMTPPort,
			Sender:     cfg.Email.Sender,
			Password:   cfg.Email.Password,
			Recipients: cfg.Email.Recipients,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		ch, err := notify.NewTelegramChannel(notify.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		log.Warn("no delivery channels enabled; reports will only be logged")
	}
	return notify.New(log.With(logx.String("comp", "notify")), channels...), nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false))

	a.seedHistories(a.sup.Context())

	h, m := a.cfgm.Get().ReportSendAt()
	spec := fmt.Sprintf("%d %d * * *", m, h)
	if _, err := a.cron.AddFunc(spec, func() {
		a.sup.Go("report.daily", a.runDaily)
	}); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	a.cron.Start()
	a.log.Info("daily report scheduled",
		logx.String("at", fmt.Sprintf("%02d:%02d", h, m)),
		logx.String("tz", a.reportLoc.String()))

	a.sup.GoRestart("market.refresh", a.marketLoop)

	// Hot reload: only logging changes apply live; the rest needs a
	// restart and is logged as such.
	a.cfgm.OnChange = func(cfg *config.Config) {
		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
		a.log.Info("config reloaded; non-logging changes take effect after restart")
	}
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.startWatchdog()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	a.log.Info("started")
	return nil
}

// startWatchdog pets the systemd watchdog when one is armed.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	// Let an in-flight cron job finish before tearing down shared state.
	cronDone := a.cron.Stop().Done()
	select {
	case <-cronDone:
	case <-ctx.Done():
	}

	err := a.sup.Stop(ctx)

	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

// Done is closed when the supervisor context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}
