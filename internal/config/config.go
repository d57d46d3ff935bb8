package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	authConfig "github.com/rodasmf/loyalty/internal/auth/config"
	handlerConfig "github.com/rodasmf/loyalty/internal/handler/config"
	loggerConfig "github.com/rodasmf/loyalty/internal/logger/config"
	notifierConfig "github.com/rodasmf/loyalty/internal/notifier/config"
	schedulerConfig "github.com/rodasmf/loyalty/internal/scheduler/config"
	storeConfig "github.com/rodasmf/loyalty/internal/store/config"
)

type Config struct {
	Handler   handlerConfig.Config
	Store     storeConfig.Config
	Logger    loggerConfig.Config
	Notifier  notifierConfig.Config
	Scheduler schedulerConfig.Config
	Auth      authConfig.Config
}

// GetConfig читает флаги; переменные окружения имеют приоритет
func GetConfig() Config {
	var cfg Config
	var origins string

	flag.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "server address")
	flag.StringVar(&origins, "cors", "*", "allowed CORS origins, comma-separated")
	flag.StringVar(&cfg.Store.DatabaseDSN, "d", "", "database dsn (empty = in-memory)")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.Notifier.MailAPIURL, "mail-url", "", "mail api base url (empty = log only)")
	flag.StringVar(&cfg.Notifier.MailAPIKey, "mail-key", "", "mail api key")
	flag.StringVar(&cfg.Notifier.MailFrom, "mail-from", "", "mail sender address")
	flag.StringVar(&cfg.Notifier.MailFromName, "mail-from-name", "Fidelización", "mail sender name")
	flag.BoolVar(&cfg.Scheduler.Enabled, "sweep", true, "enable daily expiry sweep")
	flag.IntVar(&cfg.Scheduler.AlertDays, "alert-days", 3, "expiry alert window, days")
	flag.IntVar(&cfg.Scheduler.AlertHour, "alert-hour", 9, "expiry sweep hour")
	flag.IntVar(&cfg.Scheduler.AlertMinute, "alert-minute", 0, "expiry sweep minute")
	flag.StringVar(&cfg.Auth.TokenSecret, "secret", "", "jwt signing secret")
	flag.StringVar(&cfg.Auth.APIKey, "api-key", "", "integration api key")
	flag.Parse()

	if v := os.Getenv("RUN_ADDRESS"); v != "" {
		cfg.Handler.ServerAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = v
	}
	if v := os.Getenv("DATABASE_URI"); v != "" {
		cfg.Store.DatabaseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.LogLevel = v
	}
	if v := os.Getenv("MAIL_API_URL"); v != "" {
		cfg.Notifier.MailAPIURL = v
	}
	if v := os.Getenv("MAIL_API_KEY"); v != "" {
		cfg.Notifier.MailAPIKey = v
	}
	if v := os.Getenv("MAIL_FROM"); v != "" {
		cfg.Notifier.MailFrom = v
	}
	if v := os.Getenv("MAIL_FROM_NAME"); v != "" {
		cfg.Notifier.MailFromName = v
	}
	if v := os.Getenv("ALERT_DAYS_BEFORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.AlertDays = n
		}
	}
	if v := os.Getenv("ALERT_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.AlertHour = n
		}
	}
	if v := os.Getenv("ALERT_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.AlertMinute = n
		}
	}
	if v := os.Getenv("TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := os.Getenv("INTEGRATION_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	cfg.Handler.CORSOrigins = strings.Split(origins, ",")

	return cfg
}
