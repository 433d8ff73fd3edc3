package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"

	"github.com/damsafe/device-monitor/internal/pkg/application/events"
	"github.com/damsafe/device-monitor/internal/pkg/application/monitoring"
	"github.com/damsafe/device-monitor/internal/pkg/application/poller"
	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database"
	db "github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database/monitoring"
	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/router"
	"github.com/damsafe/device-monitor/internal/pkg/presentation/api"
	"github.com/diwise/messaging-golang/pkg/messaging"
)

const serviceName string = "device-monitor"

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort
	configurationFile
	notificationsFile
)

func defaultFlags() flagMap {
	return flagMap{
		listenAddress:     "0.0.0.0",
		servicePort:       "8080",
		configurationFile: "/opt/damsafe/config/config.yaml",
		notificationsFile: "",
	}
}

// appConfig holds the poller settings. Durations are integer seconds
// so the file stays trivial to write by hand.
type appConfig struct {
	PollIntervalSeconds  int `yaml:"pollIntervalSeconds"`
	ModbusTimeoutSeconds int `yaml:"modbusTimeoutSeconds"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		PollIntervalSeconds:  5,
		ModbusTimeoutSeconds: 5,
	}
}

func main() {
	serviceVersion := version()

	logger := newLogger(serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	ctx := context.Background()
	flags := parseExternalConfig(defaultFlags())

	cfg := defaultAppConfig()
	if file, err := os.Open(flags[configurationFile]); err == nil {
		cfg, err = parseConfigFile(file)
		exitIf(err, logger, "could not parse configuration file")
	}

	var notificationConfig *events.Config
	if flags[notificationsFile] != "" {
		file, err := os.Open(flags[notificationsFile])
		exitIf(err, logger, "could not open notifications file")

		notificationConfig, err = loadNotificationConfig(file)
		exitIf(err, logger, "could not parse notifications file")
	}

	store, err := db.NewStore(newConnector(ctx, logger))
	exitIf(err, logger, "could not create or connect to database")

	messenger, err := messaging.Initialize(messaging.LoadConfiguration(serviceName, logger))
	exitIf(err, logger, "failed to init messenger")

	notifier := events.New(notificationConfig, logger)

	svc := monitoring.New(store, messenger, notifier)

	prober := poller.NewModbusProber(time.Duration(cfg.ModbusTimeoutSeconds) * time.Second)
	p := poller.New(svc, prober, time.Duration(cfg.PollIntervalSeconds)*time.Second, logger)
	p.Start()

	r := router.New(serviceName)
	api.RegisterHandlers(ctx, r, logger, svc)

	apiAddress := flags[listenAddress] + ":" + flags[servicePort]
	logger.Info().Msgf("serving requests on %s", apiAddress)

	server := &http.Server{Addr: apiAddress, Handler: r}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start request router")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down ...")

	p.Stop()
	messenger.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error().Err(err).Msg("could not shut down gracefully")
	}
}

func newConnector(ctx context.Context, logger zerolog.Logger) database.ConnectorFunc {
	cfg := database.LoadConfigFromEnv()
	if cfg.Host == "" {
		logger.Info().Msg("no database host configured, using in-memory storage")
		return database.NewSQLiteConnector(ctx)
	}

	return database.NewPostgreSQLConnector(ctx, logger, cfg)
}

func parseExternalConfig(flags flagMap) flagMap {
	envOrDef := func(name, defaultValue string) string {
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return defaultValue
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])
	flags[notificationsFile] = envOrDef("NOTIFICATIONS_FILE", flags[notificationsFile])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flag.Func("config", "poller configuration file", apply(configurationFile))
	flag.Func("notifications", "notification subscriber file", apply(notificationsFile))
	flag.Parse()

	return flags
}

func parseConfigFile(file io.ReadCloser) (appConfig, error) {
	defer file.Close()

	cfg := defaultAppConfig()

	b, err := io.ReadAll(file)
	if err != nil {
		return cfg, err
	}

	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func loadNotificationConfig(file io.ReadCloser) (*events.Config, error) {
	defer file.Close()
	return events.LoadConfiguration(file)
}

func newLogger(serviceName, serviceVersion string) zerolog.Logger {
	logger := log.With().Str("service", strings.ToLower(serviceName)).Str("version", serviceVersion).Logger()
	return logger
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Error().Err(err).Msg(msg)
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
