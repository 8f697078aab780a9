package auth

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/httpx"
	"github.com/RaviShinde19/StackIt/internal/metrics"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
)

// Handler holds user account HTTP handlers.
type Handler struct {
	svc           *Service
	log           *zap.Logger
	metrics       *metrics.Metrics
	maxUploadSize int64
}

func NewHandler(svc *Service, log *zap.Logger, m *metrics.Metrics, maxUploadSize int64) *Handler {
	return &Handler{svc: svc, log: log, metrics: m, maxUploadSize: maxUploadSize}
}

// Routes mounts under /users. limit throttles the credential endpoints and
// auth guards the account endpoints.
func (h *Handler) Routes(auth, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(limit).Post("/register", h.Register)
	r.With(limit).Post("/login", h.Login)
	r.With(limit).Post("/refresh-token", h.Refresh)
	r.Get("/{id}/avatar", h.Avatar)
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Patch("/me", h.UpdateMe)
		r.Post("/change-password", h.ChangePassword)
	})
	return r
}

// Register creates a new user from a multipart form (with an optional
// profilePic file) or a JSON body.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var (
		req models.RegisterRequest
		pic *Upload
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			httpx.Error(w, r, h.log, apperr.Wrap(err, apperr.KindValidation, "invalid multipart form"))
			return
		}
		req = models.RegisterRequest{
			FirstName: r.FormValue("firstname"),
			LastName:  r.FormValue("lastname"),
			Username:  r.FormValue("username"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			Phone:     r.FormValue("phone"),
		}
		req.IsTermsAccepted, _ = strconv.ParseBool(r.FormValue("isTermsAccepted"))

		file, header, err := r.FormFile("profilePic")
		switch {
		case err == nil:
			defer file.Close()
			if header.Size > h.maxUploadSize {
				httpx.Error(w, r, h.log, apperr.Validation("profile picture is too large"))
				return
			}
			pic = &Upload{Reader: file, Size: header.Size, ContentType: header.Header.Get("Content-Type")}
		case err != http.ErrMissingFile:
			httpx.Error(w, r, h.log, apperr.Wrap(err, apperr.KindValidation, "invalid profile picture"))
			return
		}
	} else if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req, pic)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	h.metrics.Registration()
	httpx.JSON(w, http.StatusCreated, user, "User registered")
}

// Login authenticates a user and issues a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp, "Login successful")
}

// Logout revokes the caller's refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if err := h.svc.Logout(r.Context(), id.ID); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "User logged out")
}

// Refresh exchanges a refresh token for a new pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	resp, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp, "Access token refreshed")
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	user, err := h.svc.Me(r.Context(), id.ID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user, "Current user fetched")
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req models.UpdateProfileRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), id.ID, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user, "Profile updated")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req models.ChangePasswordRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id.ID, req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct{}{}, "Password changed")
}

// Avatar streams a user's profile picture from object storage.
func (h *Handler) Avatar(w http.ResponseWriter, r *http.Request) {
	rc, ct, size, err := h.svc.Avatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("avatar stream interrupted", zap.Error(err))
	}
}
