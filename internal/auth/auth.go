package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rodasmf/loyalty/internal/auth/config"
	"github.com/rodasmf/loyalty/internal/store"
	"github.com/rodasmf/loyalty/internal/token"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.Handler) http.Handler
	APIKeyMiddleware(h http.Handler) http.Handler
}

const (
	HeaderUserCodeKey = "X-User-Code"
	headerAPIKey      = "X-Api-Key"
	cookieUserToken   = "loyaltyUserToken"
)

type auth struct {
	cfg   config.Config
	store store.Store
}

func NewAuth(cfg config.Config, store store.Store) Auth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &auth{cfg: cfg, store: store}
}

// JSON запрос регистрации/входа сотрудника
type credentialsJSONRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentialsJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password are required", http.StatusBadRequest)
		return
	}

	userCode, err := a.store.AuthRegister(r.Context(), creds.Login, hashPassword(creds.Password))
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := a.setTokenCookie(w, userCode); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentialsJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userCode, err := a.store.AuthLogin(r.Context(), creds.Login, hashPassword(creds.Password))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			http.Error(w, "invalid login or password", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := a.setTokenCookie(w, userCode); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *auth) setTokenCookie(w http.ResponseWriter, userCode string) error {
	tokenString, err := token.BuildJWTString(userCode, a.cfg.TokenSecret, a.cfg.TokenTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieUserToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
	})
	return nil
}

// Middleware пропускает только запросы с действующим токеном сотрудника
func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCode, err := a.getUserCode(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Header.Set(HeaderUserCodeKey, userCode)

		h.ServeHTTP(w, r)
	})
}

func (a *auth) getUserCode(r *http.Request) (string, error) {
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", err
	}
	return token.GetUserCode(tokenCookie.Value, a.cfg.TokenSecret)
}

// APIKeyMiddleware защищает интеграционные маршруты внешних систем
func (a *auth) APIKeyMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.APIKey == "" || r.Header.Get(headerAPIKey) != a.cfg.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
