package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/contact"
	"github.com/vasiliy-maslov/boutique-api/internal/stats"
	"github.com/vasiliy-maslov/boutique-api/internal/upload"
)

type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// AdminHandler serves the back-office endpoints that are not tied to one
// resource, plus the public contact form.
type AdminHandler struct {
	stats    stats.Service
	contact  contact.Service
	uploads  upload.Service
	validate *validator.Validate
}

func NewAdminHandler(statsService stats.Service, contactService contact.Service, uploadService upload.Service) *AdminHandler {
	return &AdminHandler{
		stats:    statsService,
		contact:  contactService,
		uploads:  uploadService,
		validate: validator.New(),
	}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router, requireAdmin func(http.Handler) http.Handler) {
	router.Post("/contact", h.handleContact)

	router.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/admin/stats", h.handleStats)
		r.Post("/upload", h.handleUpload)
	})
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Summary(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch admin stats")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) handleContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	err := h.contact.Send(r.Context(), contact.Message{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to send message")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 1 << 20

func (h *AdminHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageSize+multipartOverhead)

	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithServiceError(w, upload.ErrTooLarge, "Failed to upload image")
			return
		}
		log.Warn().Err(err).Msg("handler: failed to parse multipart form")
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithServiceError(w, upload.ErrNoFile, "Failed to upload image")
		return
	}
	defer file.Close()

	url, err := h.uploads.UploadImage(r.Context(), file, header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		respondWithServiceError(w, err, "Failed to upload image")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"image": url})
}
