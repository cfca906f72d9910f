package trace

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"logsmith/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

const maxAuthTrackedIPs = 10000

// Compared against when the user is unknown so both paths cost the same
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$Zm9vYmFyZm9vYmFyZm9vYmFyZm9vYmFyZm9vYmFyMTI"

// Identity is the authenticated caller of a trace endpoint
type Identity struct {
	Username   string
	Method     string // none, basic, bearer, jwt
	RemoteAddr string
	At         time.Time
}

// Authenticator guards the trace stream. A nil *Authenticator admits
// everyone.
type Authenticator struct {
	config       config.TraceAuthOptions
	logger       *log.Logger
	basicUsers   map[string]string // username -> argon2id PHC hash
	bearerTokens map[string]bool
	jwtParser    *jwt.Parser
	jwtKeyFunc   jwt.Keyfunc

	// Failed attempts per IP
	failures map[string]*rate.Limiter
	authMu   sync.Mutex
}

// NewAuthenticator returns nil for auth type none
func NewAuthenticator(opts *config.TraceAuthOptions, logger *log.Logger) (*Authenticator, error) {
	if opts == nil || opts.Type == "" || opts.Type == "none" {
		return nil, nil
	}

	a := &Authenticator{
		config:       *opts,
		logger:       logger,
		basicUsers:   make(map[string]string),
		bearerTokens: make(map[string]bool),
		failures:     make(map[string]*rate.Limiter),
	}

	switch opts.Type {
	case "basic":
		for _, user := range opts.Users {
			a.basicUsers[user.Username] = user.PasswordHash
		}
	case "bearer":
		for _, token := range opts.Tokens {
			a.bearerTokens[token] = true
		}
		if opts.JWTSigningKey != "" {
			a.jwtParser = jwt.NewParser(
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
				jwt.WithLeeway(5*time.Second),
				jwt.WithExpirationRequired(),
			)
			key := []byte(opts.JWTSigningKey)
			a.jwtKeyFunc = func(token *jwt.Token) (any, error) {
				return key, nil
			}
		}
	default:
		return nil, fmt.Errorf("invalid auth type '%s' for trace endpoint (valid: none, basic, bearer)", opts.Type)
	}

	logger.Info("msg", "Authenticator initialized",
		"component", "trace_auth",
		"type", opts.Type)

	return a, nil
}

// Challenge is the WWW-Authenticate value sent with a 401
func (a *Authenticator) Challenge() string {
	if a == nil {
		return ""
	}
	if a.config.Type == "basic" {
		realm := a.config.Realm
		if realm == "" {
			realm = "logsmith"
		}
		return fmt.Sprintf("Basic realm=%q", realm)
	}
	return "Bearer"
}

// AuthenticateHTTP validates an Authorization header value
func (a *Authenticator) AuthenticateHTTP(authHeader, remoteAddr string) (*Identity, error) {
	if a == nil {
		return &Identity{Method: "none", RemoteAddr: remoteAddr, At: time.Now()}, nil
	}

	ip := hostOf(remoteAddr)
	if a.blocked(ip) {
		return nil, fmt.Errorf("too many failed attempts")
	}

	var id *Identity
	var err error
	switch a.config.Type {
	case "basic":
		id, err = a.authenticateBasic(authHeader, remoteAddr)
	case "bearer":
		id, err = a.authenticateBearer(authHeader, remoteAddr)
	}

	if err != nil {
		a.recordFailure(ip)
		return nil, err
	}
	a.recordSuccess(ip)
	return id, nil
}

func (a *Authenticator) authenticateBasic(authHeader, remoteAddr string) (*Identity, error) {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return nil, fmt.Errorf("invalid basic auth header")
	}

	payload, err := base64.StdEncoding.DecodeString(authHeader[6:])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding")
	}

	username, password, ok := strings.Cut(string(payload), ":")
	if !ok {
		return nil, fmt.Errorf("invalid credentials format")
	}

	hash, exists := a.basicUsers[username]
	if !exists {
		VerifyPassword(password, dummyHash)
		return nil, fmt.Errorf("invalid credentials")
	}

	match, err := VerifyPassword(password, hash)
	if err != nil || !match {
		return nil, fmt.Errorf("invalid credentials")
	}

	return &Identity{Username: username, Method: "basic", RemoteAddr: remoteAddr, At: time.Now()}, nil
}

func (a *Authenticator) authenticateBearer(authHeader, remoteAddr string) (*Identity, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, fmt.Errorf("invalid bearer auth header")
	}
	token := authHeader[7:]

	if a.bearerTokens[token] {
		return &Identity{Method: "bearer", RemoteAddr: remoteAddr, At: time.Now()}, nil
	}

	if a.jwtParser == nil {
		return nil, fmt.Errorf("invalid token")
	}

	claims := jwt.MapClaims{}
	parsed, err := a.jwtParser.ParseWithClaims(token, claims, a.jwtKeyFunc)
	if err != nil {
		return nil, fmt.Errorf("JWT validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid JWT token")
	}

	if a.config.JWTIssuer != "" {
		if iss, _ := claims.GetIssuer(); iss != a.config.JWTIssuer {
			return nil, fmt.Errorf("invalid token issuer")
		}
	}
	if a.config.JWTAudience != "" {
		aud, _ := claims.GetAudience()
		valid := false
		for _, v := range aud {
			if v == a.config.JWTAudience {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("invalid token audience")
		}
	}

	subject, _ := claims.GetSubject()
	return &Identity{Username: subject, Method: "jwt", RemoteAddr: remoteAddr, At: time.Now()}, nil
}

// blocked reports whether ip has used up its failure allowance
func (a *Authenticator) blocked(ip string) bool {
	a.authMu.Lock()
	defer a.authMu.Unlock()
	lim, ok := a.failures[ip]
	return ok && lim.Tokens() < 1
}

func (a *Authenticator) recordFailure(ip string) {
	a.authMu.Lock()
	defer a.authMu.Unlock()

	lim, ok := a.failures[ip]
	if !ok {
		if len(a.failures) >= maxAuthTrackedIPs {
			// Evict an arbitrary entry
			for k := range a.failures {
				delete(a.failures, k)
				break
			}
		}
		lim = rate.NewLimiter(rate.Every(12*time.Second), 5)
		a.failures[ip] = lim
	}
	lim.Allow()

	a.logger.Warn("msg", "Authentication failed",
		"component", "trace_auth",
		"ip", ip)
}

func (a *Authenticator) recordSuccess(ip string) {
	a.authMu.Lock()
	delete(a.failures, ip)
	a.authMu.Unlock()
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
