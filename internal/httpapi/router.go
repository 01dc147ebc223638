package httpapi

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", app.healthHandler)
	r.Get("/tasks", app.listTasksHandler)
	r.Post("/tasks", app.createTaskHandler)
	r.Patch("/tasks/{task_id}", app.updateTaskHandler)
	r.Delete("/tasks/{task_id}", app.deleteTaskHandler)
	r.Post("/tasks/bulk", app.bulkHandler)
	r.Post("/notify/overdue", app.notifyHandler)
}
