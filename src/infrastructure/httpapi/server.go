package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"datedine/src/application"
	"datedine/src/domain"
)

// Server HTTP сервер подбора ресторанов
type Server struct {
	service  application.MatchService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewServer создает новый экземпляр HTTP сервера
func NewServer(service application.MatchService, log zerolog.Logger) *Server {
	return &Server{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// Routes собирает маршрутизатор со всеми обработчиками
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/restaurants", s.handleRestaurants)
	r.Post("/match", s.handleMatch)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := s.service.GetAllRestaurants()
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось получить корпус ресторанов")
		s.writeError(w, http.StatusInternalServerError, "не удалось получить список ресторанов")
		return
	}

	s.writeJSON(w, http.StatusOK, restaurants)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "некорректный запрос: "+err.Error())
		return
	}

	result, err := s.service.Match(r.Context(), req)
	if err != nil {
		// Недоступность провайдера векторов не должна выглядеть как
		// внутренняя ошибка сервера
		s.log.Error().Err(err).Msg("подбор не выполнен")
		s.writeError(w, http.StatusServiceUnavailable, "сервис подбора временно недоступен")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		s.log.Error().Err(err).Msg("ошибка записи ответа")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
