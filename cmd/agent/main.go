package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/field-agent/internal/service_registry"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/internal/utils"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/mqtt"
	"github.com/benmeehan/field-agent/pkg/prefs"
	"github.com/benmeehan/field-agent/pkg/s3"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	log = newLogger(config)

	preferences, err := prefs.Open(config.Agent.PrefsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open preferences")
	}
	sess := session.NewSession(preferences)

	// Restore the last known position, discarding anything that looks mocked
	filter := location.NewFilter(config.FilterConfig(), log)
	cache := location.NewCache(location.NewPreferenceStore(preferences), log)
	if err := cache.Restore(filter, time.Now()); err != nil {
		log.Warn().Err(err).Msg("Failed to restore cached location")
	}

	primary, secondary := newProviders(config, log)
	defer func() {
		for _, p := range []location.Provider{primary, secondary} {
			if p != nil {
				_ = p.Close()
			}
		}
	}()

	permissions := location.AllPermissions{location.ConsentPermission(preferences)}
	if config.Location.GPS.Enabled {
		permissions = append(permissions, location.DevicePermission{Path: config.Location.GPS.DevicePort})
	}

	locator := location.NewLocator(config.LocatorConfig(), cache, filter, permissions, primary, secondary, nil, log)
	backendClient := backend.NewClient(config.Backend.BaseURL, config.Backend.Timeout, log)

	var mqttClient mqtt.MQTTClient
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttService := mqtt.NewMqttService(log)
		err = mqttService.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			CACertificate:  config.MQTT.CACertificate,
			ConnectTimeout: config.MQTT.ConnectTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	var storage s3.ObjectStorageClient
	if config.ObjectStorage.Enabled {
		o := config.ObjectStorage
		storage = s3.NewObjectStorage(o.Region, o.PresignExpiry)
		ctx, cancel := context.WithTimeout(context.Background(), config.Backend.Timeout)
		err = storage.Connect(ctx, o.Endpoint, o.AccessKeyID, o.SecretAccessKey, o.UseSSL)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("Object storage unavailable, proofs of delivery will not be archived")
			storage = nil
		}
	}

	pool := utils.NewWorkerPool(2)
	defer pool.Shutdown()

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(service_registry.Dependencies{
		Locator:    locator,
		Backend:    backendClient,
		Session:    sess,
		MqttClient: mqttClient,
		Attendance: services.NewAttendanceService(backendClient, sess, locator, log),
		Deliveries: services.NewDeliveryService(backendClient, sess, locator, storage,
			config.ObjectStorage.Bucket, pool, log),
	}, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services did not stop cleanly")
	}
}

func newLogger(config *utils.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if config.Logging.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("agent_id", config.Agent.ID).Logger()
}

// newProviders builds the GPS receiver as primary and network geolocation as secondary.
// With only one source enabled it becomes the primary.
func newProviders(config *utils.Config, log zerolog.Logger) (location.Provider, location.Provider) {
	var primary, secondary location.Provider

	if config.Location.GPS.Enabled {
		primary = location.NewDeviceSensorProvider(config.Location.GPS.DevicePort, config.Location.GPS.BaudRate, log)
	}

	if n := config.Location.Network; n.Enabled {
		google, err := location.NewGoogleGeolocationProvider(n.MapsAPIKey, n.ModemIndex, n.PollInterval, log)
		if err != nil {
			log.Error().Err(err).Msg("Network location disabled")
		} else {
			secondary = google
		}
	}

	if primary == nil && secondary == nil {
		log.Warn().Msg("No location source enabled, location requests will fail")
	}
	return primary, secondary
}
