package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/boutique-api/internal/admin"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *admin.User `json:"user"`
}

type AuthHandler struct {
	service  admin.Service
	validate *validator.Validate
}

func NewAuthHandler(service admin.Service) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router, requireAdmin func(http.Handler) http.Handler) {
	router.Post("/auth/admin", h.handleLogin)
	router.With(requireAdmin).Get("/auth/admin/users/count", h.handleCountUsers)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	token, u, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to login as admin")
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{
		Message: "Authentication successful",
		Token:   token,
		User:    u,
	})
}

func (h *AuthHandler) handleCountUsers(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to count users")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"totalUsers": count})
}
