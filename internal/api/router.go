package api

import (
	"github.com/datallboy/levelkeep/internal/api/controllers"
	"github.com/datallboy/levelkeep/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	levelCtrl := &controllers.LevelController{App: app}

	levels := e.Group("/levels")
	levels.GET("", levelCtrl.List)
	levels.GET("/:id", levelCtrl.Get)

	// Transitions
	levels.POST("/:id/install", levelCtrl.Install)
	levels.POST("/:id/advance", levelCtrl.Advance)
	levels.POST("/:id/play", levelCtrl.Play)
	levels.POST("/:id/retry", levelCtrl.Retry)
	levels.POST("/:id/clear", levelCtrl.Clear)
}
