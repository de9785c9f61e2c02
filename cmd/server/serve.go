package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/dmcore/internal/config"
	"github.com/vedran77/dmcore/internal/notification"
	postgresrepo "github.com/vedran77/dmcore/internal/repository/postgres"
	"github.com/vedran77/dmcore/internal/service"
	"github.com/vedran77/dmcore/internal/transport/http/handlers"
	"github.com/vedran77/dmcore/internal/transport/redisbus"
	"github.com/vedran77/dmcore/internal/transport/ws"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	cfg, log, pool := a.cfg, a.log, a.pool

	dir := a.directory()
	mail := a.emailClient()

	// Broadcast transport
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	var background errgroup.Group

	hub := ws.NewHub(log)
	background.Go(func() error {
		hub.Run(hubCtx)
		return nil
	})

	var publisher service.Publisher = hub
	if cfg.BroadcastTransport == config.TransportRedis {
		rdb, err := redisbus.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		publisher = redisbus.NewPublisher(rdb)
		relay := redisbus.NewRelay(rdb, hub, log)
		background.Go(func() error {
			if err := relay.Run(hubCtx); err != nil {
				log.Error("redis relay stopped", zap.Error(err))
				return err
			}
			return nil
		})
	}
	log.Info("broadcast transport ready", zap.String("transport", cfg.BroadcastTransport))

	// Notifications
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		Workers:     cfg.NotificationWorkers,
		QueueSize:   cfg.NotificationQueueSize,
		TaskTimeout: cfg.NotificationTaskTimeout,
	}, func(ctx context.Context) (*notification.Scope, func(), error) {
		contacts, release, err := postgresrepo.AcquireContactRequestRepo(ctx, pool)
		if err != nil {
			return nil, nil, err
		}
		return &notification.Scope{Directory: dir, Email: mail, ContactRequests: contacts}, release, nil
	}, log)
	dispatcher.Start()

	var scheduler *notification.Scheduler
	if cfg.DigestEnabled {
		scheduler = notification.NewScheduler(a.digest(dir, mail), log)
		if err := scheduler.Schedule(cfg.DigestSchedule); err != nil {
			return err
		}
		scheduler.Start()
	}

	// Repositories
	store := postgresrepo.NewStore(pool)
	conversationRepo := postgresrepo.NewConversationRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)
	reportRepo := postgresrepo.NewReportRepo(pool)

	// Services
	conversationService := service.NewConversationService(conversationRepo, messageRepo, dir, log)
	messageService := service.NewMessageService(
		messageRepo,
		reportRepo,
		conversationRepo,
		conversationService,
		service.NewMessageCreator(store, log),
		service.NewBroadcaster(publisher, log),
		log,
	)
	messageService.SetNotifier(notification.NewContactNotifier(dispatcher, cfg.FirstContactEmailEnabled, cfg.BaseURL, log))
	conversationService.SetMessageSender(messageService)

	router := handlers.NewRouter(handlers.RouterConfig{
		Conversations:  conversationService,
		Messages:       messageService,
		Directory:      dir,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		WebSocket:      ws.ServeWS(hub, cfg.JWTSecret, cfg.AllowedOrigins),
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.Info("starting server", zap.String("addr", srv.Addr))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = errors.Wrap(err, "http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn("notification dispatcher shutdown", zap.Error(err))
	}
	stopHub()
	if err := background.Wait(); err != nil && runErr == nil {
		log.Warn("broadcast transport", zap.Error(err))
	}

	return runErr
}
