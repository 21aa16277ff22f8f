package internal

import (
	"net/http"

	"stride/internal/controllers"
	"stride/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController, logger providers.Logger) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider(logger)

	routers.Post("/runs/begin", http.HandlerFunc(apiController.Begin))
	routers.Post("/runs/sample", http.HandlerFunc(apiController.Sample))
	routers.Post("/runs/pause", http.HandlerFunc(apiController.Pause))
	routers.Post("/runs/resume", http.HandlerFunc(apiController.Resume))
	routers.Post("/runs/end", http.HandlerFunc(apiController.End))
	routers.Get("/runs/current", http.HandlerFunc(apiController.Current))
	routers.Post("/runs/import", http.HandlerFunc(apiController.Import))
	routers.Post("/runs/dedupe", http.HandlerFunc(apiController.RemoveDuplicates))
	routers.Get("/runs", http.HandlerFunc(apiController.Recent))
	routers.Get("/run", http.HandlerFunc(apiController.GetRun))
	routers.Post("/run/delete", http.HandlerFunc(apiController.DeleteRun))
	routers.Get("/stats", http.HandlerFunc(apiController.Stats))
	routers.Get("/achievements", http.HandlerFunc(apiController.Achievements))
	routers.Post("/achievements/reset", http.HandlerFunc(apiController.ResetAchievements))
	return routers
}
