package testserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are carried by every issued token.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

func (s *Server) issue(role, email, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
			Issuer:    "gabsload-mock-api",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
}

func (s *Server) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.opts.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// userID derives a stable id from an email address.
func userID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(email))).String()
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "kind")
	switch role {
	case "customer", "vendor", "rider":
	default:
		s.respondError(w, http.StatusNotFound, "unknown user type")
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Email == "" || body.Password == "" {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id := userID(body.Email)
	token, err := s.issue(role, body.Email, id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logins.Add(1)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"id":    id,
			"email": body.Email,
			"role":  role,
		},
	})
}

// refresh accepts expired but correctly signed tokens.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	raw := bearer(r)
	if raw == "" {
		s.respondError(w, http.StatusUnauthorized, "missing token")
		return
	}

	claims, err := s.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := s.issue(claims.Role, claims.Email, claims.Subject)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.refreshes.Add(1)

	s.respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				s.respondError(w, http.StatusUnauthorized, "missing token")
				return
			}
			claims, err := s.parse(raw)
			if err != nil {
				s.respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if claims.Role != role {
				s.respondError(w, http.StatusForbidden, "requires "+role+" role")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func claimsFrom(r *http.Request) *Claims {
	c, _ := r.Context().Value(claimsKey{}).(*Claims)
	if c == nil {
		return &Claims{}
	}
	return c
}
