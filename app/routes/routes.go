package routes

import (
	"net/http"
	"time"

	"github.com/chetan-skc/Task-Manager-API/app/controllers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RegisterRoutes sets up all routes for the application.
func RegisterRoutes(router *mux.Router, taskController *controllers.TaskController) {
	router.HandleFunc("/tasks", taskController.CreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{username}", taskController.GetTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}", taskController.UpdateTask).Methods(http.MethodPut)
	router.HandleFunc("/tasks/{taskID}", taskController.DeleteTask).Methods(http.MethodDelete)
	router.HandleFunc("/tasks/{taskID}/subtasks", taskController.ListSubtasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/subtasks", taskController.UpdateSubtasks).Methods(http.MethodPut)

	router.NotFoundHandler = http.HandlerFunc(controllers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(controllers.MethodNotAllowed)
}

// NewRouter builds the router with request logging in front of every route.
func NewRouter(logger zerolog.Logger, taskController *controllers.TaskController) http.Handler {
	router := mux.NewRouter()
	RegisterRoutes(router, taskController)

	// mux middleware only runs for matched routes, so logging wraps the
	// whole router instead.
	var h http.Handler = router
	h = hlog.AccessHandler(logAccess)(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(logger)(h)
	return h
}

func logAccess(r *http.Request, status, size int, duration time.Duration) {
	event := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.
		Str("method", r.Method).
		Str("url", r.URL.RequestURI()).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msgf("HTTP %s %s", r.Method, r.URL.Path)
}
