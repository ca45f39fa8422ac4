package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace-gateway/middleware/security/application"
	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
	"marketplace-gateway/middleware/security/sanitize"

	"github.com/google/uuid"
)

const (
	defaultMaxBody    = 1 << 20
	maxUserAgentLen   = 200
	maxPanicDetailLen = 1000
)

// Validator roda sobre os dados já sanitizados. Erro não-nil rejeita a
// requisição com 400 e a mensagem do erro.
type Validator func(data sanitize.Value) error

// BurstLimiter é um limitador local consultado antes do store persistente.
type BurstLimiter interface {
	Allow(key string) (ok bool, wait time.Duration)
}

// Options são as dependências compartilhadas por todos os endpoints.
type Options struct {
	Store    domain.RateLimitStore
	Identity domain.IdentityProvider
	Stats    domain.StatsStore
	Burst    BurstLimiter
	// LogSink nil: stdout/stderr.
	LogSink io.Writer
	// SkipCleanup desliga a limpeza global inline (use infra.Janitor).
	SkipCleanup         bool
	StorePool           domain.SlotPool
	StoreAcquireTimeout time.Duration
	Now                 func() time.Time
}

type Gateway struct {
	opts Options
}

func New(opts Options) *Gateway {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{opts: opts}
}

// Config é a configuração de um endpoint.
type Config struct {
	// Name identifica o endpoint nos registros do rate limit e nas estatísticas.
	Name        string
	RateLimit   *domain.RateLimitPolicy
	RequireAuth bool
	// ValidateInput é opcional.
	ValidateInput Validator
	// LogLevel: debug, info (padrão), warn ou error.
	LogLevel string
	// BodylessMethods são os métodos sem corpo. Padrão: GET, HEAD, DELETE.
	BodylessMethods []string
	MaxBodyBytes    int64
	// RateLimitHeaders adiciona X-RateLimit-* às respostas que passam pelo
	// Middleware.
	RateLimitHeaders bool
}

// Endpoint é um Config validado, pronto para verificar requisições.
type Endpoint struct {
	gw       *Gateway
	cfg      Config
	log      *logging.Logger
	limiter  application.RateLimiter
	bodyless map[string]bool
	maxBody  int64
}

func (g *Gateway) Endpoint(cfg Config) (*Endpoint, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if rl := cfg.RateLimit; rl != nil {
		if rl.Window <= 0 {
			return nil, errors.New("rate limit window must be > 0")
		}
		if rl.MaxRequests <= 0 {
			return nil, errors.New("rate limit maxRequests must be > 0")
		}
		if rl.Endpoint == "" {
			p := *rl
			p.Endpoint = cfg.Name
			cfg.RateLimit = &p
		}
	}
	if cfg.RequireAuth && g.opts.Identity == nil {
		return nil, errors.New("requireAuth needs an identity provider")
	}

	methods := cfg.BodylessMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodHead, http.MethodDelete}
	}
	bodyless := make(map[string]bool, len(methods))
	for _, m := range methods {
		bodyless[strings.ToUpper(m)] = true
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	log := logging.New(level, g.opts.LogSink)
	return &Endpoint{
		gw:  g,
		cfg: cfg,
		log: log,
		limiter: application.RateLimiter{
			Store:       g.opts.Store,
			Logger:      log,
			SkipCleanup: g.opts.SkipCleanup,
			Bulkhead: application.ConcurrencyService{
				Pool:           g.opts.StorePool,
				AcquireTimeout: g.opts.StoreAcquireTimeout,
			},
			Now: g.opts.Now,
		},
		bodyless: bodyless,
		maxBody:  maxBody,
	}, nil
}

// MustEndpoint é Endpoint que entra em pânico com configuração inválida.
// Para uso na montagem das rotas.
func (g *Gateway) MustEndpoint(cfg Config) *Endpoint {
	e, err := g.Endpoint(cfg)
	if err != nil {
		panic(fmt.Sprintf("security: invalid endpoint config %q: %v", cfg.Name, err))
	}
	return e
}

func (e *Endpoint) Logger() *logging.Logger { return e.log }

// Result é o resultado de uma verificação.
//
// Exatamente um dos dois vale: Response != nil (resposta terminal, ou o
// preflight CORS) ou continuação com User/SanitizedData.
type Result struct {
	Success  bool
	Outcome  domain.Outcome
	Response *Response
	// User só existe quando o endpoint exige autenticação.
	User *domain.Principal
	// SanitizedData só existe para métodos com corpo.
	SanitizedData *sanitize.Value
	// RateLimit é a decisão do limiter quando o endpoint tem política.
	RateLimit *domain.RateLimitResult
}

// Terminal diz se o chamador deve devolver Response e parar.
func (r Result) Terminal() bool { return r.Response != nil }

// Check roda CORS → rate limit → autenticação → corpo, nessa ordem, e para
// na primeira falha. Nunca entra em pânico.
func (e *Endpoint) Check(ctx context.Context, req Request) (res Result) {
	identifier := ""
	var limit *domain.RateLimitResult
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Security middleware error", map[string]any{
				"error": truncate(fmt.Sprint(r), maxPanicDetailLen),
			})
			res = e.finish(ctx, req, identifier, domain.OutcomeInternal, nil, nil, internalResponse())
		}
	}()

	if req.Method == http.MethodOptions {
		return e.finish(ctx, req, "", domain.OutcomeCORS, nil, nil, preflightResponse())
	}

	clientIP := ClientIP(req)
	identifier = clientIP
	userAgent := req.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	requestID := uuid.NewString()

	e.log.Info("Request received", map[string]any{
		"requestId": requestID,
		"method":    req.Method,
		"url":       req.URL,
		"clientIP":  clientIP,
		"userAgent": truncate(userAgent, maxUserAgentLen),
	})

	if rl := e.cfg.RateLimit; rl != nil {
		if rl.Identifier != "" {
			identifier = rl.Identifier
		}

		if b := e.gw.opts.Burst; b != nil {
			if ok, wait := b.Allow(identifier); !ok {
				e.log.Warn("Rate limit exceeded", map[string]any{"requestId": requestID, "identifier": identifier, "burst": true})
				return e.finish(ctx, req, identifier, domain.OutcomeRateLimited, nil, nil, rateLimitedResponse(wait))
			}
		}

		dec := e.limiter.Check(ctx, identifier, *rl)
		if !dec.Allowed {
			if dec.StoreErr != nil {
				// política fail-closed: o store falhou e o endpoint não aceita liberar
				return e.finish(ctx, req, identifier, domain.OutcomeInternal, nil, nil, internalResponse())
			}
			e.log.Warn("Rate limit exceeded", map[string]any{"requestId": requestID, "identifier": identifier})
			return e.finish(ctx, req, identifier, domain.OutcomeRateLimited, nil, nil, rateLimitedResponse(dec.RetryAfter))
		}
		limit = &dec
	}

	var user *domain.Principal
	if e.cfg.RequireAuth {
		token, ok := bearerToken(req.Header.Get("Authorization"))
		if !ok {
			e.log.Warn("Missing or invalid auth header", map[string]any{"requestId": requestID})
			return e.finish(ctx, req, identifier, domain.OutcomeUnauthenticated, nil, nil,
				ErrorResponse(MsgAuthRequired, http.StatusUnauthorized, nil))
		}

		p, err := e.gw.opts.Identity.Verify(ctx, token)
		switch {
		case err != nil && !errors.Is(err, domain.ErrInvalidToken):
			e.log.Error("Identity provider error", map[string]any{"requestId": requestID, "error": err.Error()})
			return e.finish(ctx, req, identifier, domain.OutcomeInternal, nil, nil, internalResponse())
		case err != nil || p == nil:
			meta := map[string]any{"requestId": requestID}
			if err != nil {
				meta["error"] = err.Error()
			}
			e.log.Warn("Authentication failed", meta)
			return e.finish(ctx, req, identifier, domain.OutcomeUnauthenticated, nil, nil,
				ErrorResponse(MsgInvalidToken, http.StatusUnauthorized, nil))
		}

		user = p
		e.log.Info("User authenticated", map[string]any{"requestId": requestID, "userId": user.ID})
	}

	var data *sanitize.Value
	if !e.bodyless[strings.ToUpper(req.Method)] {
		if req.oversized || int64(len(req.Body)) > e.maxBody {
			e.log.Warn("Request body too large", map[string]any{"requestId": requestID, "limit": e.maxBody})
			return e.finish(ctx, req, identifier, domain.OutcomeBadRequest, nil, nil,
				ErrorResponse(MsgBodyTooLarge, http.StatusRequestEntityTooLarge, nil))
		}
		raw, err := sanitize.Decode(req.Body)
		if err != nil {
			e.log.Warn("Failed to parse request body", map[string]any{"requestId": requestID, "error": err.Error()})
			return e.finish(ctx, req, identifier, domain.OutcomeBadRequest, nil, nil,
				ErrorResponse(MsgInvalidJSON, http.StatusBadRequest, nil))
		}
		clean := sanitize.Object(raw, sanitize.DefaultMaxDepth)

		if v := e.cfg.ValidateInput; v != nil {
			if err := v(clean); err != nil {
				msg := err.Error()
				if msg == "" {
					msg = MsgInvalidInput
				}
				e.log.Warn("Input validation failed", map[string]any{
					"requestId": requestID,
					"error":     msg,
					"data":      clean,
				})
				return e.finish(ctx, req, identifier, domain.OutcomeValidation, nil, nil,
					ErrorResponse(msg, http.StatusBadRequest, nil))
			}
		}
		data = &clean
	}

	meta := map[string]any{"requestId": requestID}
	if user != nil {
		meta["userId"] = user.ID
	}
	e.log.Info("Security checks passed", meta)

	res = e.finish(ctx, req, identifier, domain.OutcomeContinue, user, data, nil)
	res.RateLimit = limit
	return res
}

func (e *Endpoint) finish(ctx context.Context, req Request, identifier string, outcome domain.Outcome,
	user *domain.Principal, data *sanitize.Value, resp *Response) Result {
	e.record(ctx, req, identifier, outcome)

	res := Result{Outcome: outcome, Response: resp}
	switch outcome {
	case domain.OutcomeCORS:
		res.Success = true
	case domain.OutcomeContinue:
		res.Success = true
		res.User = user
		res.SanitizedData = data
	}
	return res
}

// record é best-effort: erro ou pânico das estatísticas não muda a decisão.
func (e *Endpoint) record(ctx context.Context, req Request, identifier string, outcome domain.Outcome) {
	stats := e.gw.opts.Stats
	if stats == nil {
		return
	}
	defer func() { _ = recover() }()

	path := req.URL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if e.cfg.Name != "" {
		path = e.cfg.Name
	}
	err := stats.Record(ctx, domain.OutcomeEvent{
		Identifier: identifier,
		Outcome:    outcome,
		Method:     req.Method,
		Path:       path,
		At:         e.gw.opts.Now(),
	})
	if err != nil {
		e.log.Debug("Stats record failed", map[string]any{"error": err.Error()})
	}
}

func internalResponse() *Response {
	return ErrorResponse(MsgInternalError, http.StatusInternalServerError, nil)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
