package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/http"
)

// Credentials identify one test account.
type Credentials struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

// LoginResult carries what the login step needs for checks and metrics.
type LoginResult struct {
	Token    Token
	UserID   string
	Status   int
	Duration time.Duration
}

// Authenticator performs login and refresh calls against the target.
type Authenticator struct {
	client *http.Client
	now    func() time.Time
}

// NewAuthenticator binds login and refresh to client.
func NewAuthenticator(client *http.Client) *Authenticator {
	return &Authenticator{client: client, now: time.Now}
}

// Login posts credentials to /auth/{kind}/login.
//
// A non-200 status or a response without a token yields a *failure.Step;
// the result still carries the status and duration for metrics.
func (a *Authenticator) Login(ctx context.Context, kind actor.Kind, creds Credentials) (LoginResult, error) {
	req := http.Post(fmt.Sprintf("/auth/%s/login", kind)).
		Named("auth_login_" + kind.String()).
		WithBody(creds)

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return LoginResult{}, err
	}

	result := LoginResult{
		Status:   resp.StatusCode,
		Duration: resp.Duration(),
	}
	if resp.StatusCode != 200 {
		return result, &failure.Step{Step: "login", Status: resp.StatusCode, Reason: "login rejected"}
	}

	raw := resp.JSON("token").String()
	if raw == "" {
		return result, &failure.Step{Step: "login", Status: resp.StatusCode, Reason: "response has no token"}
	}

	result.Token = Token{
		Kind:       kind,
		Value:      raw,
		AcquiredAt: a.now(),
		ExpiresAt:  DecodeExpiry(raw),
	}
	result.UserID = resp.JSON("user.id").String()
	return result, nil
}

// Refresh exchanges current for a new token via /auth/refresh. It has the
// RefreshFunc signature so it can be handed straight to Store.EnsureValid.
func (a *Authenticator) Refresh(ctx context.Context, current Token) (Token, error) {
	req := http.Post("/auth/refresh").
		Named("auth_refresh").
		WithBearer(current.Value)

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return Token{}, err
	}
	if resp.StatusCode != 200 {
		return Token{}, &failure.Step{Step: "refresh", Status: resp.StatusCode, Reason: "refresh rejected"}
	}

	raw := resp.JSON("token").String()
	if raw == "" {
		return Token{}, &failure.Step{Step: "refresh", Status: resp.StatusCode, Reason: "response has no token"}
	}

	return Token{
		Kind:       current.Kind,
		Value:      raw,
		AcquiredAt: a.now(),
		ExpiresAt:  DecodeExpiry(raw),
	}, nil
}

// DecodeExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens and tokens without exp return the zero time.
func DecodeExpiry(raw string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
