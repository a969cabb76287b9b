package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/field-agent/internal/registry"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/internal/utils"
	"github.com/benmeehan/field-agent/internal/web"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/mqtt"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/rs/zerolog"
)

// Service is the lifecycle every registered service implements.
type Service = registry.Service

// Dependencies are the shared clients handed to service constructors.
type Dependencies struct {
	Locator    services.LocationSource
	Backend    backend.ClientInterface
	Session    session.SessionInterface
	MqttClient mqtt.MQTTClient // nil when MQTT is disabled
	Attendance web.Attendance
	Deliveries web.Deliveries
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	deps        Dependencies
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(deps Dependencies, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		deps:     deps,
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered services in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "location",
			enabled: config.Services.Location.Enabled,
			constructor: func() (Service, error) {
				return services.NewLocationService(
					config.Agent.ID,
					config.Services.Location.Topic,
					config.Services.Location.Interval,
					config.Services.Location.QOS,
					sr.deps.Locator,
					sr.deps.Backend,
					sr.deps.Session,
					sr.deps.MqttClient,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				if sr.deps.MqttClient == nil {
					return nil, errors.New("heartbeat service needs mqtt.enabled")
				}
				return services.NewHeartbeatService(
					config.Agent.ID,
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					config.Services.Heartbeat.QOS,
					sr.deps.Session,
					sr.deps.Locator,
					sr.deps.MqttClient,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "web",
			enabled: config.Services.Web.Enabled,
			constructor: func() (Service, error) {
				return web.NewServer(
					config.Services.Web.ListenAddress,
					config.Services.Web.ShutdownTimeout,
					sr.deps.Locator,
					sr.deps.Attendance,
					sr.deps.Deliveries,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
