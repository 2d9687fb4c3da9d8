package main

import (
	"FrappeBot/ai/gpt"
	"FrappeBot/bot"
	"FrappeBot/bot/chat"
	"FrappeBot/bot/order"
	"FrappeBot/bot/whatsapp"
	"FrappeBot/impl/core"
	"FrappeBot/internal/config"
	"FrappeBot/internal/database"
	"FrappeBot/internal/http-server/api"
	"FrappeBot/internal/lib/logger"
	"FrappeBot/internal/lib/sl"
	"FrappeBot/internal/service/notify"
	"FrappeBot/internal/statestore"
	"FrappeBot/internal/ws"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telegram carries warnings and errors to the operators
	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")

			go func() {
				if err := tgBot.Start(ctx); err != nil {
					lg.Error("telegram bot error", sl.Err(err))
				}
			}()
		}
	}

	lg.Info("starting frappebot", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
	}
	if db != nil {
		handler.SetRepository(db)
		if err = db.EnsureIndexes(); err != nil {
			lg.With(sl.Err(err)).Error("mongo indexes")
		}
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
	}

	var kv chat.KV = statestore.NewMemoryStore()
	if db != nil {
		kv = db.StateStore()
	}
	if conf.Redis.Enabled {
		redisStore, err := statestore.NewRedisStore(ctx, statestore.RedisOptions{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			Prefix:   conf.Redis.Prefix,
		}, lg)
		if err != nil {
			lg.With(sl.Err(err)).Error("redis unavailable, using fallback conversation store")
		} else {
			defer redisStore.Close()
			kv = redisStore
			lg.With(
				slog.String("addr", conf.Redis.Addr),
				slog.Int("db", conf.Redis.DB),
			).Info("redis state store initialized")
		}
	}

	var notifier notify.Notifier
	switch conf.Workflow.Transport {
	case config.TransportSQS:
		sqsNotifier, err := notify.NewSQSNotifierFromRegion(ctx, conf.Workflow.Region, conf.Workflow.QueueURL)
		if err != nil {
			lg.With(sl.Err(err)).Error("sqs notifier")
		} else {
			notifier = sqsNotifier
		}
	default:
		if conf.Workflow.WebhookURL != "" {
			notifier = notify.NewWebhookNotifier(conf.Workflow.WebhookURL, conf.Workflow.Timeout)
		}
	}
	if notifier == nil {
		lg.Warn("workflow notifications disabled")
	} else {
		lg.With(slog.String("transport", conf.Workflow.Transport)).Info("workflow notifier initialized")
	}
	dispatcher := notify.NewDispatcher(notifier, conf.Workflow.Timeout, lg)
	handler.SetPublisher(dispatcher)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	handler.SetHub(hub)
	go hub.Run(ctx)

	waBot := whatsapp.NewWhatsAppBot(whatsapp.Options{
		APIURL:        conf.WhatsApp.ApiURL,
		AccessToken:   conf.WhatsApp.AccessToken,
		VerifyToken:   conf.WhatsApp.VerifyToken,
		AppSecret:     conf.WhatsApp.AppSecret,
		PhoneNumberID: conf.WhatsApp.PhoneNumberID,
		Timeout:       conf.WhatsApp.Timeout,
	}, lg)
	lg.With(
		slog.String("phone_number_id", conf.WhatsApp.PhoneNumberID),
		sl.Secret("access_token", conf.WhatsApp.AccessToken),
	).Info("whatsapp bot initialized")

	gateway := whatsapp.NewGateway(waBot, lg)
	gateway.SetMessageListener(handler)
	gateway.SetPublisher(dispatcher)

	admins := make([]string, 0, len(conf.Business.Admins))
	for _, a := range conf.Business.Admins {
		if phone := chat.NormalizePhone(a); phone != "" {
			admins = append(admins, phone)
		}
	}
	settings := chat.Settings{
		Name:            conf.Business.Name,
		MenuURL:         conf.Business.MenuURL,
		Hours:           conf.Business.Hours,
		BankDetails:     conf.Business.BankDetails,
		RequestLocation: conf.Business.RequestLocation,
		Admins:          admins,
	}

	storage := chat.NewStorage(kv)
	finalizer := order.NewFinalizer(handler, dispatcher, gateway, storage, admins, lg)

	engine := chat.NewEngine(storage, gateway, finalizer, settings, lg)
	engine.SetPublisher(dispatcher)
	engine.SetMessageListener(handler)
	if conf.OpenAI.ApiKey != "" {
		engine.SetAssistant(gpt.NewOpenAIResponder(conf.OpenAI.ApiKey, conf.OpenAI.Model, conf.OpenAI.SystemPrompt, lg))
		lg.With(
			sl.Secret("openai_key", conf.OpenAI.ApiKey),
			slog.String("model", conf.OpenAI.Model),
		).Info("assistant initialized")
	}

	handler.SetConversations(engine)
	waBot.SetProcessor(engine)
	if tgBot != nil {
		tgBot.SetOperations(handler)
	}

	server := api.New(conf, lg, handler, hub, waBot)
	go func() {
		if err := server.Start(); err != nil {
			lg.Error("server start", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", sl.Err(err))
	}
	// conversations still in flight publish through the dispatcher
	waBot.Wait()
	dispatcher.Wait()

	lg.Info("service stopped")
}
