package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

type credentials struct {
	Login    string `json:"login" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Access token goes both to the body and the Authorization header
func renderToken(w http.ResponseWriter, token models.IssuedToken, code int) {
	w.Header().Set("Authorization", "Bearer "+token.Value)
	render.JSONWithStatus(w, tokenResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	}, code)
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[credentials](w, r)
		if err != nil {
			return
		}

		token, err := authService.Register(r.Context(), data.Login, data.Password)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		renderToken(w, token, http.StatusCreated)
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		token, err := authService.Login(r.Context(), data.Login, data.Password)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		renderToken(w, token, http.StatusOK)
	})
}

func handleUserMe(userService userService, l logger.Logger) http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Role     string    `json:"role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		user, err := userService.GetUser(r.Context(), actor.UserID)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, response{ID: user.ID, Username: user.Username, Role: user.Role})
	})
}
