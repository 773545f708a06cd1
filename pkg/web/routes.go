package web

import "github.com/gofiber/fiber/v3"

// Register mounts the editor API on the router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflow")
	w.Get("/", h.GetWorkflow)
	w.Put("/", h.SetWorkflow)
	w.Post("/reset", h.ResetWorkflow)
	w.Post("/undo", h.Undo)
	w.Post("/redo", h.Redo)
	w.Get("/history", h.GetHistory)
	w.Put("/trigger", h.UpdateTrigger)
	w.Put("/selection", h.SetSelection)
	w.Get("/yaml", h.GetYAML)
	w.Get("/validation", h.GetValidation)
	w.Get("/export", h.ExportWorkflow)
	w.Post("/import", h.ImportWorkflow)

	w.Post("/jobs", h.AddJob)
	w.Patch("/jobs/:jobId", h.UpdateJob)
	w.Delete("/jobs/:jobId", h.DeleteJob)
	w.Post("/jobs/:jobId/steps", h.AddStep)
	w.Patch("/jobs/:jobId/steps/:stepId", h.UpdateStep)
	w.Delete("/jobs/:jobId/steps/:stepId", h.DeleteStep)

	router.Post("/yaml/parse", h.ParseYAML)

	t := router.Group("/templates")
	t.Get("/", h.GetTemplates)
	t.Get("/:id", h.GetTemplate)
	t.Post("/:id/apply", h.ApplyTemplate)

	router.Delete("/storage", h.ClearStorage)
	router.Get("/health", h.HealthCheck)
}
