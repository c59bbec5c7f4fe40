package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/assistant"
	"github.com/ent0n29/callassist/internal/calls"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/config"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/httpapi"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/schedule"
	"github.com/ent0n29/callassist/internal/session"
	"github.com/ent0n29/callassist/internal/settings"
	"github.com/ent0n29/callassist/internal/transcribe"
	"github.com/ent0n29/callassist/internal/voice"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Tracker     *session.Manager
	Coordinator *calls.Coordinator
	Scheduler   *schedule.Scheduler
	Renderer    *voice.Renderer
	Metrics     *observability.Metrics
	VoiceDetail string

	// Cleanup should be called on shutdown to release the speech engine and the schedule store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	voiceSetup, err := resolveVoiceProviders(cfg)
	if err != nil {
		return nil, err
	}

	scheduleStore, err := schedule.NewStore(ctx, cfg.DatabaseURL, cfg.ScheduleDBPath)
	if err != nil {
		return nil, fmt.Errorf("schedule store init failed: %w", err)
	}

	settingsStore := settings.NewStore(settings.Values{
		WhisperServerURL: cfg.WhisperServerURL,
		OllamaServerURL:  cfg.OllamaServerURL,
		OllamaModel:      cfg.OllamaModel,
		AutoReplyDefault: cfg.AutoReplyDefault,
	})

	var gate connectivity.Gate
	if strings.EqualFold(cfg.ConnectivityMode, "static") {
		// Offline until the phone shim reports its link.
		gate = connectivity.NewStaticGate(false)
	} else {
		gate = connectivity.NewInterfaceGate()
	}

	renderer := voice.NewRenderer(voiceSetup.engine, logger, metrics)
	if err := renderer.Initialize(ctx); err != nil {
		if !voice.IsEngineUnavailable(err) {
			_ = scheduleStore.Close()
			return nil, fmt.Errorf("speech engine init failed: %w", err)
		}
		logger.Warn("speech engine unavailable; speech requests are dropped",
			zap.String("engine", voiceSetup.engine.Name()), zap.Error(err))
	}

	agentClient := agent.NewClient(settingsStore, cfg.HTTPTimeout, logger, metrics)
	tracker := session.NewManager(cfg.CallInactivityTimeout)
	hub := httpapi.NewShimHub(logger, metrics)
	mode := callstate.NewModeStore(callstate.AssistantMode{
		AutoReplyEnabled: settingsStore.AutoReplyDefault(),
		VoiceStyle:       cfg.DefaultVoiceStyle,
	})

	pipeline := transcribe.NewPipeline(transcribe.Config{
		OpenSource:      voiceSetup.openSource,
		Online:          transcribe.NewWhisperClient(cfg.HTTPTimeout),
		OnlineEndpoint:  settingsStore.OnlineASREndpoint,
		Offline:         voiceSetup.recognizer,
		Gate:            gate,
		DefaultDuration: cfg.CaptureDuration,
		OnlineTimeout:   cfg.HTTPTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})

	coordinator := calls.NewCoordinator(calls.Config{
		Registry:     callstate.NewRegistry(),
		Mode:         mode,
		Gate:         gate,
		Agent:        agentClient,
		Speaker:      renderer,
		Dialer:       hub,
		Notifier:     hub,
		Tracker:      tracker,
		ReplyTimeout: cfg.HTTPTimeout,
		WorkerLimit:  cfg.WorkerLimit,
		OnCallEnded:  func() { pipeline.StopActive() },
		Logger:       logger,
		Metrics:      metrics,
	})

	tracker.SetExpireHook(func(_ *session.Call) {
		metrics.ObserveCallEvent("any", "expired")
		metrics.SetActiveCalls(tracker.ActiveCount())
	})

	assistantService := assistant.NewService(assistant.Config{
		Capturer:        pipeline,
		Agent:           agentClient,
		Gate:            gate,
		Mode:            mode,
		Speaker:         renderer,
		CaptureDuration: cfg.CaptureDuration,
		ReplyTimeout:    cfg.HTTPTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})

	scheduler := schedule.NewScheduler(scheduleStore, func(ctx context.Context, req schedule.Request) error {
		return coordinator.ArmAndDial(ctx, req.Number, req.Reason)
	}, cfg.SchedulerPollInterval, logger.Named("schedule"), metrics)

	api := httpapi.New(httpapi.Deps{
		Config:      cfg,
		Coordinator: coordinator,
		Tracker:     tracker,
		Scheduler:   scheduler,
		Settings:    settingsStore,
		Gate:        gate,
		Assistant:   assistantService,
		Capture:     pipeline,
		Renderer:    renderer,
		Prober:      agent.NewProber(cfg.HTTPTimeout),
		Hub:         hub,
		Metrics:     metrics,
		Logger:      logger,
	})

	cleanup := func() error {
		var errs []string
		pipeline.StopActive()
		coordinator.Wait()
		if err := renderer.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := scheduleStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Tracker:     tracker,
		Coordinator: coordinator,
		Scheduler:   scheduler,
		Renderer:    renderer,
		Metrics:     metrics,
		VoiceDetail: voiceSetup.detail,
		Cleanup:     cleanup,
	}, nil
}
