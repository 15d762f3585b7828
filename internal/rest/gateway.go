package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tmendonca/loop/internal/auth"
	"go.uber.org/zap"
)

// envelope is the backend's standard response shape. Credential-minting
// endpoints additionally carry the token as a top-level sibling of data.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Token   string          `json:"token"`
}

// Gateway wraps every outbound REST call. Authenticated requests attach the
// current bearer credential; a 401 triggers the single-flight renewal
// protocol and exactly one retry. The renewal endpoint itself authenticates
// with the transport-level session cookie, which the gateway's cookie jar
// carries across calls.
type Gateway struct {
	base   string
	httpc  *http.Client
	creds  *auth.Store
	gate   *auth.Gate
	logger *zap.Logger
}

// NewGateway creates a gateway for the given API base URL (including the
// /api path).
func NewGateway(baseURL string, timeout time.Duration, creds *auth.Store, gate *auth.Gate, logger *zap.Logger) *Gateway {
	jar, _ := cookiejar.New(nil)
	return &Gateway{
		base: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		creds:  creds,
		gate:   gate,
		logger: logger,
	}
}

// Do performs an authenticated request and decodes the envelope's data
// field into out (skipped when out is nil).
//
// On an expired credential exactly one renewal happens per failure burst:
// the first caller through the gate renews, everyone else waits on the gate
// and retries with whatever credential is current afterwards. If renewal
// itself fails the store transitions to logged-out and the original
// unauthorized failure is returned.
func (g *Gateway) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	// Await any in-flight renewal before attaching the credential, so a
	// request issued mid-renewal picks up the fresh token.
	select {
	case <-g.gate.Unlocked():
	case <-ctx.Done():
		return ctx.Err()
	}

	err := g.once(ctx, method, path, query, body, out, true)
	if !IsUnauthorized(err) {
		return err
	}

	leader, done := g.gate.Acquire()
	if leader {
		renewErr := g.renew(ctx)
		g.gate.Release()
		if renewErr != nil {
			g.creds.SetLoggedOut()
			g.logger.Warn("credential renewal failed, session ended",
				zap.String("path", path),
				zap.Error(renewErr),
			)
			return err
		}
	} else {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Exactly one retry, never a second renewal for this burst.
	return g.once(ctx, method, path, query, body, out, true)
}

// Get is shorthand for Do with http.MethodGet and no body.
func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	return g.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post is shorthand for Do with http.MethodPost.
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Patch is shorthand for Do with http.MethodPatch.
func (g *Gateway) Patch(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete is shorthand for Do with http.MethodDelete.
func (g *Gateway) Delete(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodDelete, path, nil, body, out)
}

// Authenticate posts to a credential-minting endpoint (login, signup,
// refresh) without a bearer header and returns the minted token and viewer.
// No renewal protocol applies: a 401 here means the credentials or the
// session cookie are simply invalid.
func (g *Gateway) Authenticate(ctx context.Context, path string, body any) (string, auth.User, error) {
	env, err := g.roundTrip(ctx, http.MethodPost, path, nil, body, false)
	if err != nil {
		return "", auth.User{}, err
	}
	var user auth.User
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &user); err != nil {
			return "", auth.User{}, &APIError{Status: http.StatusOK, Code: CodeDecode, Message: err.Error()}
		}
	}
	if env.Token == "" {
		return "", auth.User{}, &APIError{Status: http.StatusOK, Code: CodeDecode, Message: "auth response carried no token"}
	}
	return env.Token, user, nil
}

// once performs a single attempt with no gate interaction.
func (g *Gateway) once(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	env, err := g.roundTrip(ctx, method, path, query, body, authed)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Status: http.StatusOK, Code: CodeDecode, Message: err.Error()}
		}
	}
	return nil
}

// renew calls the renewal endpoint using the cookie session identity and
// installs the fresh credential on success. Callers hold the gate.
func (g *Gateway) renew(ctx context.Context) error {
	env, err := g.roundTrip(ctx, http.MethodPost, "/auth/refresh", nil, nil, false)
	if err != nil {
		return fmt.Errorf("renew credential: %w", err)
	}
	var user auth.User
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &user); err != nil {
			return fmt.Errorf("renew credential: decode user: %w", err)
		}
	}
	if env.Token == "" {
		return fmt.Errorf("renew credential: response carried no token")
	}
	g.creds.SetAuthenticated(env.Token, user)

	if exp, err := auth.ParseExpiry(env.Token); err == nil {
		g.logger.Info("credential renewed", zap.Time("token_exp", exp))
	} else {
		g.logger.Info("credential renewed")
	}
	return nil
}

func (g *Gateway) roundTrip(ctx context.Context, method, path string, query url.Values, body any, authed bool) (*envelope, error) {
	target := g.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token := g.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var env envelope
	if len(raw) > 0 {
		// Tolerate an undecodable body; status handling below decides
		// whether that matters.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		msg := env.Error
		if msg == "" {
			msg = "credential expired"
		}
		return nil, &APIError{Status: resp.StatusCode, Code: CodeUnauthorized, Message: msg}
	}
	if resp.StatusCode >= http.StatusBadRequest || (len(raw) > 0 && !env.Success) {
		return nil, &APIError{Status: resp.StatusCode, Code: CodeDomain, Message: env.Error}
	}
	return &env, nil
}
