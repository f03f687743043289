package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// UserService defines the methods that the user handler requires from the
// service layer.
type UserService interface {
	RegisterUser(ctx context.Context, user domain.User) error
}

// UserHandler serves user registration endpoints.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler with the given service and logger.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// registerUserRequest is the POST /api/users body.
type registerUserRequest struct {
	Address        string `json:"address"`
	PrivateKey     string `json:"private_key"`
	TelegramChatID string `json:"telegram_chat_id"`
	NotifyDefault  *bool  `json:"notify_default"`
}

// RegisterUser registers a wallet so its orders can be signed and settled.
// Registering an existing address replaces the stored key and settings.
// POST /api/users
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Address == "" || req.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "address and private_key are required")
		return
	}

	notify := true
	if req.NotifyDefault != nil {
		notify = *req.NotifyDefault
	}

	err := h.users.RegisterUser(r.Context(), domain.User{
		Address:        req.Address,
		PrivateKey:     req.PrivateKey,
		TelegramChatID: req.TelegramChatID,
		NotifyDefault:  notify,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidKeyLength) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: register user failed",
			slog.String("address", req.Address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":  "registered",
		"address": req.Address,
	})
}
