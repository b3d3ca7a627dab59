package handler

import (
	"net/http"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/dto"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, validate: v, logger: logger.With().Str("handler", "UserHandler").Logger()}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Post("/users/register", h.register)
	r.Post("/users/login", h.login)
	r.With(authMw).Get("/users/profile", h.profile)
}

// register godoc
// @Summary Register a user
// @Description Creates an account with the default quota and returns an access token.
// @Tags users
// @Accept json
// @Produce json
// @Param user body dto.RegisterRequestDTO true "Registration"
// @Success 201 {object} dto.TokenResponseDTO
// @Failure 400 {object} dto.Envelope
// @Router /users/register [post]
func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	if _, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	session, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse(session))
}

// login godoc
// @Summary Log in
// @Tags users
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequestDTO true "Credentials"
// @Success 200 {object} dto.TokenResponseDTO
// @Failure 401 {object} dto.Envelope
// @Router /users/login [post]
func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	session, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(session))
}

// profile godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {object} dto.Envelope
// @Failure 404 {object} dto.Envelope
// @Router /users/profile [get]
func (h *UserHandler) profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	u, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserResponseDTO{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Quota:     u.Quota,
		CreatedAt: u.CreatedAt,
	})
}

func tokenResponse(s *service.Session) dto.TokenResponseDTO {
	return dto.TokenResponseDTO{
		AccessToken: s.Token,
		TokenType:   "bearer",
		ExpiresAt:   s.ExpiresAt,
		UserID:      s.User.ID,
		Username:    s.User.Username,
	}
}
