package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/api/middleware"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/recognizer"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(attendance *core.AttendanceService, reviews *core.ReviewService, rec recognizer.Recognizer, db *sql.DB, jwtSecret string) *mux.Router {

	h := handler.AttendanceHandler{
		Service: attendance,
		Reviews: reviews,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(jwtSecret))

	api.HandleFunc("/attendance/capture", h.Capture).Methods(http.MethodPost)
	api.HandleFunc("/attendance/manual", h.CreateManual).Methods(http.MethodPost)
	api.HandleFunc("/attendance", h.List).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id:[0-9]+}", h.Patch).Methods(http.MethodPatch)
	api.HandleFunc("/attendance/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)

	api.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/pending/count", h.CountPending).Methods(http.MethodGet)
	api.HandleFunc("/pending/{id:[0-9]+}/approve", h.Approve).Methods(http.MethodPost)
	api.HandleFunc("/pending/{id:[0-9]+}/reject", h.Reject).Methods(http.MethodPost)

	// Health stays outside the auth boundary so orchestration probes work.
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "Database unreachable.", http.StatusServiceUnavailable)
			return
		}
		if err := rec.Ping(r.Context()); err != nil {
			http.Error(w, "Face service unreachable.", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
