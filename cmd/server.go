package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"opinion-radar/internal/api"
	"opinion-radar/internal/browser"
	"opinion-radar/internal/crawler"
	"opinion-radar/internal/gateway"
	"opinion-radar/internal/notifier"
	"opinion-radar/internal/storage"
	"opinion-radar/internal/watch"
)

// AppConfig 应用配置。敏感字段可被同名环境变量覆盖。
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Database  DatabaseConfig          `yaml:"database"`
	Browser   browser.Config          `yaml:"browser"`
	Zhihu     crawler.ZhihuConfig     `yaml:"zhihu"`
	Coze      gateway.CozeConfig      `yaml:"coze"`
	Analyzer  gateway.Config          `yaml:"analyzer"`
	Scheduler watch.SchedulerConfig   `yaml:"scheduler"`
	Email     notifier.EmailConfig    `yaml:"email"`
	Telegram  notifier.TelegramConfig `yaml:"telegram"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

func main() {
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
	log := logrus.WithField("component", "main")

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	applyEnv(&cfg)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "data/opinion.db"
	}
	store, err := storage.NewStore(dbPath)
	if err != nil {
		log.WithError(err).Fatal("init store")
	}
	defer store.Close()

	xhs := crawler.NewXHSCrawler(cfg.Browser)
	zhihu := crawler.NewZhihuCrawler(cfg.Zhihu, nil)
	crawls := crawler.NewService(xhs, zhihu)

	coze := gateway.NewCozeClient(cfg.Coze, &http.Client{Timeout: 60 * time.Second})
	analyzer := gateway.NewAnalyzer(coze, cfg.Analyzer)

	dispatch := buildNotifier(cfg, log)

	registry := watch.NewRegistry()
	runner := watch.NewRunner(crawls.Crawlers(), analyzer, dispatch, store)
	sched := watch.NewScheduler(registry, runner, cfg.Scheduler)

	buffer := storage.NewCrawlBuffer()
	server := api.NewServer(registry, runner, crawls, buffer, store)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: server.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("scheduler stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("server error")
	}
}

func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AppConfig{}, nil
		}
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖敏感配置，方便不落盘部署。
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("ZHIHU_COOKIE"); v != "" {
		cfg.Zhihu.Cookie = v
	}
	if v := os.Getenv("COZE_TOKEN"); v != "" {
		cfg.Coze.Token = v
	}
	if v := os.Getenv("COZE_WORKFLOW_ID"); v != "" {
		cfg.Coze.WorkflowID = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
}

// buildNotifier 按配置组装通知渠道，全部缺省时退化为日志输出。
func buildNotifier(cfg AppConfig, log *logrus.Entry) *notifier.Dispatcher {
	var email, telegram notifier.Notifier

	if cfg.Email.Host != "" && cfg.Email.Port != 0 && cfg.Email.From != "" {
		email = notifier.NewEmailNotifier(cfg.Email, nil)
	} else {
		log.Info("email notifier disabled: missing host/port/from")
	}

	if cfg.Telegram.Token != "" {
		tg, err := notifier.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			log.WithError(err).Warn("telegram notifier disabled")
		} else {
			telegram = tg
		}
	}

	return notifier.NewDispatcher(email, telegram, notifier.NewLogNotifier())
}
