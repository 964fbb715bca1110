package servicediscover

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"ecopoints-ledger/pkg/config"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module registers the API with the local consul agent on start and removes
// it on stop. Nothing is registered when CONSUL.ADDR is empty.
var Module = fx.Module("servicediscover",
	fx.Provide(NewRegistry),
	fx.Invoke(registerConsul),
)

type ServiceRegistry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	service   *api.AgentServiceRegistration
}

type noop struct{}

func (noop) Register(context.Context) error   { return nil }
func (noop) Deregister(context.Context) error { return nil }

func NewRegistry(cfg *config.Config) (ServiceRegistry, error) {
	if cfg.Consul.Addr == "" {
		return noop{}, nil
	}

	host := cfg.Consul.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	port := cfg.Consul.Port
	if port == 0 {
		port, _ = strconv.Atoi(cfg.Server.Addr)
	}

	return NewConsulRegistry(cfg.Consul.Addr, cfg.AppName, fmt.Sprintf("%s-%s-%d", cfg.AppName, host, port), host, port)
}

func NewConsulRegistry(address, serviceName, serviceID, host string, port int) (*ConsulRegistry, error) {
	conf := api.DefaultConfig()
	conf.Address = address

	client, err := api.NewClient(conf)
	if err != nil {
		return nil, err
	}

	service := &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Tags:    []string{"ecopoints", "http"},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health/readiness", host, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	return &ConsulRegistry{
		client:    client,
		serviceID: serviceID,
		service:   service,
	}, nil
}

func (r *ConsulRegistry) Register(ctx context.Context) error {
	return r.client.Agent().ServiceRegister(r.service)
}

func (r *ConsulRegistry) Deregister(ctx context.Context) error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}

func registerConsul(lc fx.Lifecycle, r ServiceRegistry) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := r.Register(ctx); err != nil {
				// discovery is optional; the API still serves direct traffic
				zap.L().Warn("[Consul] failed to register service", zap.Error(err))
				return nil
			}
			if c, ok := r.(*ConsulRegistry); ok {
				zap.L().Info("[Consul] service registered", zap.String("service_id", c.serviceID))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := r.Deregister(ctx); err != nil {
				zap.L().Warn("[Consul] failed to deregister service", zap.Error(err))
			}
			return nil
		},
	})
}
