package securecore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/mestore/securecore/blacklist"
	"github.com/mestore/securecore/bruteforce"
	"github.com/mestore/securecore/csrf"
	"github.com/mestore/securecore/jwt"
	"github.com/mestore/securecore/password"
	"github.com/mestore/securecore/session"
)

// Builder defines a public type used by securecore APIs.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	rateLimit    bruteforce.Strategy

	built bool
}

// New starts a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the backing store client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account lookup used during authentication.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit destination. Auditing is switched on at Build
// time whenever a sink is present, so the order of builder calls cannot drop
// events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRateLimitStrategy overrides the brute-force backend. The Redis-backed
// limiter remains the default; the in-memory strategy is only sound in a
// single process.
func (b *Builder) WithRateLimitStrategy(strategy bruteforce.Strategy) *Builder {
	b.rateLimit = strategy
	return b
}

// Build validates the configuration and assembles the engine. The bcrypt
// dummy hash is computed here at the configured cost, which makes Build
// deliberately slow (one full hash) — construct once at startup.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.BcryptCost, cfg.Password.MaxConcurrentHashes)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	csrfManager, err := csrf.NewManager(cfg.CSRF.Secret, cfg.CSRF.TokenLifetime)
	if err != nil {
		return nil, err
	}

	rateLimit := b.rateLimit
	if rateLimit == nil {
		rateLimit = bruteforce.New(b.redis, bruteforce.Config{
			MaxAttempts:           cfg.BruteForce.MaxAttempts,
			AttemptWindow:         cfg.BruteForce.AttemptWindow,
			LockoutDuration:       cfg.BruteForce.LockoutDuration,
			IPThresholdMultiplier: cfg.BruteForce.IPThresholdMultiplier,
			OperationTimeout:      cfg.BruteForce.OperationTimeout,
		})
	}

	sessions := session.NewService(b.redis, session.Config{
		RedisPrefix:           cfg.Session.RedisPrefix,
		SessionTimeout:        cfg.Session.SessionTimeout,
		MaxConcurrentSessions: cfg.Session.MaxConcurrentSessions,
		RejectBots:            cfg.Security.RejectBots,
		OperationTimeout:      cfg.Session.OperationTimeout,
	})

	b.built = true

	return &Service{
		config:    cfg,
		users:     b.userProvider,
		hasher:    hasher,
		tokens:    jwtManager,
		csrf:      csrfManager,
		rateLimit: rateLimit,
		revoked:   blacklist.New(b.redis, cfg.Blacklist.DefaultTTL),
		sessions:  sessions,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   newMetrics(cfg.Metrics),
	}, nil
}
