package main

import (
	"FunnelRouter/ai/dialogflow"
	"FunnelRouter/ai/gpt"
	"FunnelRouter/bot"
	"FunnelRouter/bot/graph"
	"FunnelRouter/bot/insta"
	"FunnelRouter/bot/whatsapp"
	"FunnelRouter/impl/core"
	"FunnelRouter/internal/config"
	"FunnelRouter/internal/database"
	"FunnelRouter/internal/http-server/api"
	"FunnelRouter/internal/lib/logger"
	"FunnelRouter/internal/lib/sl"
	"FunnelRouter/internal/service/agent"
	"FunnelRouter/internal/service/delivery"
	"FunnelRouter/internal/service/ledger"
	"FunnelRouter/internal/service/queue"
	"FunnelRouter/internal/service/secrets"
	"FunnelRouter/internal/service/tenant"
	"FunnelRouter/internal/ws"
	"context"
	"flag"
	"fmt"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 15 * time.Second

type closer interface {
	Close() error
}

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	lg.Info("starting funnel router", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, lg); err != nil {
		lg.Error("service stopped", sl.Err(err))
		os.Exit(1)
	}
	lg.Info("service stopped")
}

func run(ctx context.Context, conf *config.Config, lg *slog.Logger) error {
	handler := core.New(lg)
	handler.SetVerifyToken(conf.Meta.VerifyToken)
	handler.SetMaxAttempts(conf.Queue.MaxAttempts)

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				lg.Warn("closing resource", sl.Err(err))
			}
		}
	}()

	// Telegram alerts
	if conf.Telegram.Enabled {
		tgBot, err := bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			handler.SetAlerter(tgBot)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
				slog.Int64("admin_id", conf.Telegram.AdminId),
			).Info("telegram alerts enabled")
		}
	}

	// Secret store
	var store secrets.Store
	switch conf.Secrets.Driver {
	case "gcp":
		sm, err := secrets.NewSecretManager(ctx, conf.GCP.ProjectID, conf.GCP.CredentialsFile, lg)
		if err != nil {
			return err
		}
		closers = append(closers, sm)
		store = sm
	default:
		store = secrets.Static(conf.Secrets.Values)
	}
	lg.With(slog.String("driver", conf.Secrets.Driver)).Info("secret store initialized")

	// app secret for webhook signatures: read once per process
	handler.SetSecretStore(secrets.NewCached(store, 0, conf.Secrets.Timeout), conf.Meta.AppSecretName)

	// Tenant document store
	var repo tenant.Repository
	db, err := repository.NewMongoClient(ctx, conf, lg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), conf.Mongo.Timeout)
			defer cancel()
			_ = db.Close(closeCtx)
		}()
		if err = db.Ping(ctx); err != nil {
			lg.Warn("mongo ping failed", sl.Err(err))
		}
		repo = db
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
	} else {
		repo = tenant.NewMemory()
		lg.Warn("mongo disabled, tenant store is empty")
	}
	handler.SetResolver(tenant.NewResolver(repo, lg))

	// Idempotency ledger
	if conf.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		closers = append(closers, rdb)
		handler.SetLedger(ledger.NewRedis(rdb, conf.Redis.Prefix, conf.Idempotency.Retention), conf.Queue.Lease)
		lg.With(slog.String("addr", conf.Redis.Addr)).Info("redis ledger initialized")
	} else {
		handler.SetLedger(ledger.NewMemory(conf.Idempotency.Retention, conf.Idempotency.MaxKeys), conf.Queue.Lease)
	}

	// Conversational agent
	var agentService agent.AgentService
	switch conf.Agent.Driver {
	case "openai":
		agentService = gpt.NewOverseer(conf.OpenAI.ApiKey, conf.OpenAI.Model, conf.OpenAI.BaseURL, conf.OpenAI.History, lg)
		lg.With(
			sl.Secret("openai_key", conf.OpenAI.ApiKey),
			slog.String("model", conf.OpenAI.Model),
		).Info("openai agent initialized")
	default:
		df, err := dialogflow.New(ctx, dialogflow.Options{
			ProjectID:       conf.GCP.ProjectID,
			Location:        conf.Dialogflow.Location,
			AgentID:         conf.Dialogflow.AgentID,
			LanguageCode:    conf.Agent.LanguageCode,
			Endpoint:        conf.Dialogflow.Endpoint,
			CredentialsFile: conf.GCP.CredentialsFile,
			Timeout:         conf.Agent.Timeout,
		}, lg)
		if err != nil {
			return err
		}
		agentService = df
		lg.With(
			slog.String("location", conf.Dialogflow.Location),
			slog.String("agent_id", conf.Dialogflow.AgentID),
		).Info("dialogflow agent initialized")
	}
	handler.SetAgent(agent.NewInvoker(agentService, conf.Agent.RatePerSec, conf.Agent.Timeout, lg))

	// Platforms
	wa := whatsapp.New(graph.New(conf.Meta.WhatsAppApiURL, conf.Meta.DeliveryTimeout, nil), lg)
	ig := insta.NewInstaBot(graph.New(conf.Meta.InstagramApiURL, conf.Meta.DeliveryTimeout, nil), lg)
	handler.AddNormalizer(wa)
	handler.AddNormalizer(ig)

	credentials := secrets.NewCached(store, conf.Meta.CredentialTTL, conf.Secrets.Timeout)
	handler.SetDelivery(delivery.New(credentials, conf.Meta.DeliveryRatePerSec, conf.Meta.DeliveryTimeout, lg, wa, ig))

	// Live pipeline events
	hub := ws.NewHub(lg.With(sl.Module("ws")))
	handler.SetEventSink(hub)

	// Message queue
	var publisher queue.Publisher
	var consumer queue.Consumer
	switch conf.Queue.Driver {
	case "pubsub":
		ps, err := queue.NewPubSub(ctx, queue.PubSubOptions{
			ProjectID:       conf.GCP.ProjectID,
			CredentialsFile: conf.GCP.CredentialsFile,
			Topic:           conf.Queue.Topic,
			Subscription:    conf.Queue.Subscription,
			Workers:         conf.Queue.Workers,
			Lease:           conf.Queue.Lease,
			PublishTimeout:  conf.Queue.PublishTimeout,
		}, lg)
		if err != nil {
			return err
		}
		closers = append(closers, ps)
		publisher = ps
		if !conf.PushEnabled() {
			consumer = ps
		}
	case "memory":
		mq := queue.NewMemory(conf.Queue.Workers, conf.Queue.Lease, queue.Backoff{
			Initial: conf.Queue.BackoffInitial,
			Max:     conf.Queue.BackoffMax,
		}, lg)
		defer mq.Close()
		publisher = mq
		consumer = mq
	default:
		return fmt.Errorf("unknown queue driver %q", conf.Queue.Driver)
	}
	handler.SetPublisher(publisher)
	lg.With(
		slog.String("driver", conf.Queue.Driver),
		slog.Int("workers", conf.Queue.Workers),
		slog.Int("max_attempts", conf.Queue.MaxAttempts),
	).Info("message queue initialized")

	server := api.New(conf, lg, handler, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(gctx, handler.Handle)
		})
	}
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
