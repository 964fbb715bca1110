package httpapi

import (
	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/health"
	"ecopoints-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine),
)

// Router mounts a service's endpoints on the API engine.
type Router interface {
	Register(r gin.IRouter)
}

// AsRouter annotates a constructor so its result joins the "routes" group.
func AsRouter(f any) any {
	return fx.Annotate(f,
		fx.As(new(Router)),
		fx.ResultTags(`group:"routes"`),
	)
}

type EngineParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
	Routes []Router `group:"routes"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(), middleware.Error())

	r.GET("/health/liveness", p.Health.Liveness)
	r.GET("/health/readiness", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, route := range p.Routes {
		route.Register(r)
	}

	return r
}
