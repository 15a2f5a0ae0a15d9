// Package main provides the HTTP API server for registering people whose birthdays are notified.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jnst/birthday-outbox/internal/config"
	"github.com/jnst/birthday-outbox/internal/logger"
	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/service"
	"github.com/jnst/birthday-outbox/internal/storage"
)

const (
	contentTypeJSON        = "Content-Type"
	applicationJSON        = "application/json"
	failedToEncodeResponse = "failed to encode response"
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
	exitCode               = 1
)

// APIServer handles HTTP requests for person management.
type APIServer struct {
	personService service.PersonService
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(personService service.PersonService) *APIServer {
	return &APIServer{
		personService: personService,
	}
}

// Routes registers the API endpoints on a new mux.
func (s *APIServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /user", s.CreatePerson)
	mux.HandleFunc("GET /user", s.GetPerson)
	mux.HandleFunc("PUT /user", s.UpdatePerson)
	mux.HandleFunc("DELETE /user", s.DeletePerson)
	mux.HandleFunc("GET /user/occurrences", s.ListOccurrences)
	mux.HandleFunc("GET /health", s.HealthCheck)

	return mux
}

// CreatePerson handles POST /user.
func (s *APIServer) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var params model.CreatePersonParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	person, err := s.personService.CreatePerson(r.Context(), &params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "User successfully added", "user": person})
}

// GetPerson handles GET /user?id=.
func (s *APIServer) GetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := s.personService.GetPerson(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": person})
}

// UpdatePerson handles PUT /user with a partial body that must carry the id.
func (s *APIServer) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var params model.UpdatePersonParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	person, err := s.personService.UpdatePerson(r.Context(), &params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "User successfully updated", "user": person})
}

// DeletePerson handles DELETE /user?id=.
func (s *APIServer) DeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := s.personService.DeletePerson(r.Context(), r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User successfully deleted"})
}

// ListOccurrences handles GET /user/occurrences?id=.
func (s *APIServer) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	occurrences, err := s.personService.ListOccurrences(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if occurrences == nil {
		occurrences = []*model.Occurrence{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"occurrences": occurrences})
}

// HealthCheck handles GET /health endpoint for service health check.
func (*APIServer) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrInvalidBirthDate),
		errors.Is(err, model.ErrInvalidTimeZone),
		errors.Is(err, model.ErrInvalidPersonID):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrPersonNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrPersonExists):
		status = http.StatusConflict
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, map[string]string{"message": "Internal error"})

		return
	}

	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(contentTypeJSON, applicationJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error(failedToEncodeResponse, slog.String("error", err.Error()))
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	slog.SetDefault(logger.Setup(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer st.Close()

	planner := service.NewPlannerServiceImpl(st.Outbox)
	personService := service.NewPersonServiceImpl(st.Persons, st.Outbox, st.Transactions, planner,
		service.PersonServiceOptions{DeleteHistory: cfg.DeleteHistory})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewAPIServer(personService).Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", slog.String("error", err.Error()))
		}
	}()

	slog.Info("starting API server",
		slog.String("service", "api"),
		slog.String("port", cfg.Port),
		slog.String("storage", cfg.StorageDriver),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to start server", slog.String("error", err.Error()))
		return
	}

	slog.Info("API server stopped")
}
