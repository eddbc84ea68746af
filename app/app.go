package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pearleseed/device-hub-sub001/db"
	"github.com/pearleseed/device-hub-sub001/notify"
	"github.com/pearleseed/device-hub-sub001/reservation"
	"github.com/pearleseed/device-hub-sub001/session"
)

type Ctx = gin.Context
type H = gin.H

// App holds every long-lived dependency.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client // nil when running on the in-memory store
	KV     session.KV
	Config Config
	Log    *slog.Logger

	Repo         *db.Repo
	Audit        *db.AuditSink
	Reservations *reservation.Service

	appSess     *session.AppSessionStore
	mqtt        *notify.Client
	stopJanitor context.CancelFunc
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// New connects storage, the broker and the reservation service. Partial
// setup is torn down on error.
func New(cfg Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error

	// --- DB ---
	if a.DB, err = db.Connect(cfg.DBConfig(), log); err != nil {
		return nil, err
	}
	a.Repo = db.NewRepo(a.DB)
	a.Audit = db.NewAuditSink(a.DB, log.With("component", "audit"))

	// --- Redis or in-memory KV ---
	if cfg.RedisAddr != "" {
		a.RDB = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err = a.RDB.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.KV = session.NewRedisKV(a.RDB)
	} else {
		mem := session.NewMemoryKV()
		ctx, cancel := context.WithCancel(context.Background())
		a.stopJanitor = cancel
		go mem.Run(ctx, time.Minute)
		a.KV = mem
		log.Warn("REDIS_ADDR not set, using in-memory sessions and rate limits")
	}
	a.appSess = session.NewAppSessionStore(a.KV, cfg.SessionTTL)

	// --- Notifications ---
	notifiers := notify.Fanout{notify.LogNotifier{Log: log.With("component", "notify")}}
	if cfg.MQTTBrokerURL != "" {
		if a.mqtt, err = notify.Connect(notify.MQTTConfig{BrokerURL: cfg.MQTTBrokerURL, ClientID: cfg.MQTTClientID}); err != nil {
			return nil, err
		}
		var mqttN *notify.MQTTNotifier
		mqttN, err = notify.NewMQTTNotifier(a.mqtt, cfg.MQTTTopicPrefix, byte(cfg.MQTTQoS))
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, mqttN)
	}

	// --- Reservation core ---
	coord, err := reservation.NewCoordinator(db.NewStore(a.DB), log.With("component", "tx"),
		reservation.WithMaxAttempts(cfg.TxMaxAttempts),
		reservation.WithBaseDelay(cfg.TxBaseDelay),
	)
	if err != nil {
		return nil, err
	}
	a.Reservations = reservation.NewService(coord,
		reservation.WithNotifier(notifiers),
		reservation.WithAuditor(a.Audit),
		reservation.WithLogger(log.With("component", "reservation")),
	)

	// --- Gin ---
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))
	useCORS(r, cfg.WebOrigin)
	a.Router = r
	ok = true
	return a, nil
}

// Close drains post-commit hooks before closing the connections they use.
func (a *App) Close() {
	if a.Reservations != nil {
		a.Reservations.Close()
	}
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	if a.mqtt != nil {
		_ = a.mqtt.Close()
	}
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}
