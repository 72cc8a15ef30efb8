package http_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/boutique-api/internal/contact"
	boutiqueHttp "github.com/vasiliy-maslov/boutique-api/internal/handler/http"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
	"github.com/vasiliy-maslov/boutique-api/internal/stats"
	"github.com/vasiliy-maslov/boutique-api/internal/upload"
)

func newAdminRouter(s *MockStatsService, c *MockContactService, u *MockUploadService) *chi.Mux {
	r := chi.NewRouter()
	boutiqueHttp.NewAdminHandler(s, c, u).RegisterRoutes(r, allowAll)
	return r
}

func TestAdminHandler_handleStats(t *testing.T) {
	statsService := new(MockStatsService)
	statsService.On("Summary", mock.Anything).Return(&stats.Summary{
		TotalOrders:      4,
		TotalSales:       420.5,
		TrendingProducts: 2,
		TotalProducts:    9,
		MonthlySales:     []stats.MonthlySales{{Month: "2025-05", TotalSales: 420.5, TotalOrders: 4}},
		TotalUsers:       12,
	}, nil).Once()

	rr := httptest.NewRecorder()
	newAdminRouter(statsService, new(MockContactService), new(MockUploadService)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"totalOrders": 4,
		"totalSales": 420.5,
		"trendingProducts": 2,
		"totalProducts": 9,
		"monthlySales": [{"_id": "2025-05", "totalSales": 420.5, "totalOrders": 4}],
		"totalUsers": 12
	}`, rr.Body.String())
}

func TestAdminHandler_handleContact(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		sendErr    error
		called     bool
		wantStatus int
	}{
		{
			name:       "sent",
			body:       `{"name": "Leila", "email": "leila@example.com", "subject": "Sizes", "message": "XL?"}`,
			called:     true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "mail_down",
			body:       `{"name": "Leila", "email": "leila@example.com", "subject": "Sizes", "message": "XL?"}`,
			sendErr:    mail.ErrDelivery,
			called:     true,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "missing_message",
			body:       `{"name": "Leila", "email": "leila@example.com", "subject": "Sizes"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contactService := new(MockContactService)
			if tt.called {
				contactService.On("Send", mock.Anything, contact.Message{
					Name: "Leila", Email: "leila@example.com", Subject: "Sizes", Message: "XL?",
				}).Return(tt.sendErr).Once()
			}

			rr := httptest.NewRecorder()
			newAdminRouter(new(MockStatsService), contactService, new(MockUploadService)).
				ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/contact", bytes.NewBufferString(tt.body)))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			contactService.AssertExpectations(t)
		})
	}
}

func multipartImage(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf, w.FormDataContentType()
}

func TestAdminHandler_handleUpload(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		uploads := new(MockUploadService)
		uploads.On("UploadImage", mock.Anything, mock.Anything, "red.png", "image/png", int64(4)).
			Return("https://res.cloudinary.com/demo/image/upload/wahret-zmen/red.png", nil).Once()

		body, contentType := multipartImage(t, "image", "red.png", "image/png", []byte("\x89PNG"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		newAdminRouter(new(MockStatsService), new(MockContactService), uploads).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"image": "https://res.cloudinary.com/demo/image/upload/wahret-zmen/red.png"}`, rr.Body.String())
		uploads.AssertExpectations(t)
	})

	t.Run("wrong_field", func(t *testing.T) {
		uploads := new(MockUploadService)

		body, contentType := multipartImage(t, "file", "red.png", "image/png", []byte("\x89PNG"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		newAdminRouter(new(MockStatsService), new(MockContactService), uploads).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, upload.ErrNoFile.Error(), decodeBody(t, rr)["error"])
		uploads.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provider_failure", func(t *testing.T) {
		uploads := new(MockUploadService)
		uploads.On("UploadImage", mock.Anything, mock.Anything, "red.png", "image/png", int64(4)).
			Return("", upload.ErrUpstream).Once()

		body, contentType := multipartImage(t, "image", "red.png", "image/png", []byte("\x89PNG"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		newAdminRouter(new(MockStatsService), new(MockContactService), uploads).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("not_multipart", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newAdminRouter(new(MockStatsService), new(MockContactService), new(MockUploadService)).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
