package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/marketplace-engine/internal/api/middleware"
	"github.com/example/marketplace-engine/internal/auth"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/query"
	"github.com/example/marketplace-engine/internal/readmodel"
	"github.com/google/uuid"
)

// AuthHandlers owns the account surface: register, login, token refresh, and
// password rotation. Refresh is stateless; the refresh token itself is the
// only credential and the user read model is re-checked on every renewal.
type AuthHandlers struct {
	userService  *user.Service
	jwtService   *auth.JWTService
	queryHandler *query.Handler
}

func NewAuthHandlers(userService *user.Service, jwtService *auth.JWTService, queryHandler *query.Handler) *AuthHandlers {
	return &AuthHandlers{
		userService:  userService,
		jwtService:   jwtService,
		queryHandler: queryHandler,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponseOf(m *readmodel.UserReadModel) UserResponse {
	return UserResponse{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
}

// respondUnauthorized writes a 401 directly. writeError cannot be used here:
// fault.ErrUnauthorized maps to 403, and the login/refresh surface owns 401.
func respondUnauthorized(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnauthorized, map[string]string{"error": message})
}

// Register creates an account and signs the caller in. Self-registration is
// limited to customer and artisan; staff and admin are provisioned out of
// band.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}

	role := user.Role(req.Role)
	if req.Role == "" {
		role = user.RoleCustomer
	}
	if role != user.RoleCustomer && role != user.RoleArtisan {
		writeError(w, fault.Validationf("role must be customer or artisan"))
		return
	}

	if _, taken := h.queryHandler.GetUserByEmail(req.Email); taken {
		writeError(w, fault.Conflictf("email %s is already registered", req.Email))
		return
	}

	created, err := h.userService.RegisterWithRole(r.Context(), req.Email, req.Password, req.Name, role)
	if err != nil {
		writeError(w, err)
		return
	}

	h.issueTokens(w, r, created.ID, created.Email, string(created.Role))

	respondJSON(w, http.StatusCreated, AuthResponse{
		User: UserResponse{
			ID:        created.ID,
			Email:     created.Email,
			Name:      created.Name,
			Role:      string(created.Role),
			CreatedAt: created.CreatedAt,
		},
		Message: "Registration successful",
	})
}

// Login verifies credentials against the user read model. An unknown email
// and a wrong password produce the same answer.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}

	account, found := h.queryHandler.GetUserByEmail(req.Email)
	if !found {
		respondUnauthorized(w, "invalid email or password")
		return
	}
	if !account.IsActive {
		writeError(w, fault.Unauthorizedf("account is deactivated"))
		return
	}
	if !auth.CheckPassword(req.Password, account.PasswordHash) {
		respondUnauthorized(w, "invalid email or password")
		return
	}

	h.issueTokens(w, r, account.ID, account.Email, account.Role)

	// Audit trail only; a failed append must not block the login.
	_ = h.userService.RecordLogin(r.Context(), account.ID, uuid.New().String(), r.RemoteAddr, r.UserAgent())

	respondJSON(w, http.StatusOK, AuthResponse{
		User:    userResponseOf(account),
		Message: "Login successful",
	})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		_ = h.userService.RecordLogout(r.Context(), claims.UserID, "")
	}

	h.expireTokens(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Refresh renews both tokens from the refresh cookie. A deactivated or
// deleted account cannot renew; its cookies are cleared on the way out.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondUnauthorized(w, "no refresh token")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(cookie.Value)
	if err != nil {
		h.expireTokens(w)
		respondUnauthorized(w, "invalid refresh token")
		return
	}

	account, found := h.queryHandler.GetUser(userID)
	if !found {
		h.expireTokens(w)
		respondUnauthorized(w, "user not found")
		return
	}
	if !account.IsActive {
		h.expireTokens(w)
		writeError(w, fault.Unauthorizedf("account is deactivated"))
		return
	}

	h.issueTokens(w, r, account.ID, account.Email, account.Role)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// Me returns the authenticated account's profile.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondUnauthorized(w, "unauthorized")
		return
	}

	account, found := h.queryHandler.GetUser(claims.UserID)
	if !found {
		writeError(w, &fault.NotFound{Resource: "user", ID: claims.UserID})
		return
	}

	respondJSON(w, http.StatusOK, userResponseOf(account))
}

// ChangePassword rotates the password after re-verifying the current one.
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondUnauthorized(w, "unauthorized")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}

	account, found := h.queryHandler.GetUser(claims.UserID)
	if !found {
		writeError(w, &fault.NotFound{Resource: "user", ID: claims.UserID})
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, account.PasswordHash) {
		writeError(w, fault.Validationf("current password is incorrect"))
		return
	}

	if err := h.userService.ChangePassword(r.Context(), claims.UserID, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// issueTokens sets both auth cookies. The refresh cookie is scoped to the
// refresh endpoint so it never rides along on ordinary requests.
func (h *AuthHandlers) issueTokens(w http.ResponseWriter, r *http.Request, userID, email, role string) {
	access, accessExpiry, _ := h.jwtService.GenerateAccessToken(userID, email, role)
	refresh, refreshExpiry, _ := h.jwtService.GenerateRefreshToken(userID)

	secure := r.TLS != nil
	setTokenCookie(w, "access_token", access, "/", accessExpiry, secure)
	setTokenCookie(w, "refresh_token", refresh, "/auth/refresh", refreshExpiry, secure)
}

func (h *AuthHandlers) expireTokens(w http.ResponseWriter) {
	for name, path := range map[string]string{
		"access_token":  "/",
		"refresh_token": "/auth/refresh",
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

func setTokenCookie(w http.ResponseWriter, name, value, path string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
