package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/models"
	pkghttp "github.com/brinebarrel/storefront-api/pkg/http"
)

const (
	defaultCustomerPageSize = 50
	maxCustomerPageSize     = 200
)

// UserReader fetches account records for profile and admin views
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// UserHandler handles profile and admin customer endpoints
type UserHandler struct {
	userRepo UserReader
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo UserReader) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Me returns the profile behind the current session
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Session outlived the account
			pkghttp.WriteUnauthorized(w, "authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// ListCustomers returns a page of customer accounts. Admin only; the route
// group enforces the session's admin flag before this runs.
func (h *UserHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultCustomerPageSize)
	if limit < 1 || limit > maxCustomerPageSize {
		limit = defaultCustomerPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	users, err := h.userRepo.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	customers := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		customers = append(customers, toUserResponse(user))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"limit":     limit,
		"offset":    offset,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
