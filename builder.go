package innercircle

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aolweb/innercircle/internal/rate"
	"github.com/aolweb/innercircle/internal/secmon"
	"github.com/aolweb/innercircle/memberkey"
	"github.com/aolweb/innercircle/tokenstore"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config

	redis redis.UniversalClient
	pg    *pgxpool.Pool

	tokenStore tokenstore.Store
	keyStore   memberkey.Store
	auditSink  AuditSink

	built bool
}

// New starts a builder with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the distributed-cache token store
// and the shared rate limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres supplies the pool used by the relational token store and
// the durable member key store.
func (b *Builder) WithPostgres(pool *pgxpool.Pool) *Builder {
	b.pg = pool
	return b
}

// WithTokenStore overrides backend selection with an explicit store.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.tokenStore = store
	return b
}

// WithMemberKeyStore overrides the member key store.
func (b *Builder) WithMemberKeyStore(store memberkey.Store) *Builder {
	b.keyStore = store
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, selects the storage backends, and
// wires the engine. A builder can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens := b.tokenStore
	if tokens == nil {
		switch cfg.Storage.Backend {
		case BackendMemory:
			tokens = tokenstore.NewMemory()
		case BackendDistributedCache:
			if b.redis == nil {
				return nil, errors.New("distributed-cache backend requires a redis client")
			}
			tokens = tokenstore.NewRedis(b.redis, cfg.Storage.RedisPrefix)
		case BackendRelational:
			if b.pg == nil {
				return nil, errors.New("relational backend requires a postgres pool")
			}
			pg, err := tokenstore.NewPostgres(b.pg)
			if err != nil {
				return nil, err
			}
			tokens = pg
		default:
			return nil, errors.New("unknown storage backend")
		}
	}

	keyStore := b.keyStore
	if keyStore == nil {
		if b.pg != nil {
			pgStore, err := memberkey.NewPostgresStore(b.pg)
			if err != nil {
				return nil, err
			}
			keyStore = pgStore
		} else {
			keyStore = memberkey.NewMemoryStore()
		}
	}

	keys, err := memberkey.NewService(keyStore, memberkey.Config{
		KeyTTL:             cfg.MemberKey.TTL,
		MaxKeysPerMember:   cfg.MemberKey.MaxActiveKeys,
		SuffixLength:       cfg.MemberKey.SuffixLength,
		EmailHashPrefixLen: cfg.MemberKey.EmailHashPrefixLen,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config: cfg,
		tokens: tokens,
		keys:   keys,
		now:    time.Now,
	}

	engine.unlockLimiter = newLimiter(b.redis, "irl:unlock", rate.Config{
		MaxRequests: cfg.RateLimit.UnlockMax,
		Window:      cfg.RateLimit.UnlockWindow,
	})
	engine.verifyLimiter = newLimiter(b.redis, "irl:verify", rate.Config{
		MaxRequests: cfg.RateLimit.VerifyMax,
		Window:      cfg.RateLimit.VerifyWindow,
	})

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.monitor = secmon.New(secmon.Config{
		MaxEvents:         cfg.Security.MaxEvents,
		IncidentThreshold: cfg.Security.IncidentThreshold,
	}, monitorBlocklist{engine})

	b.built = true

	return engine, nil
}

// newLimiter prefers the shared Redis budget when a client is available so
// horizontally scaled instances count together.
func newLimiter(client redis.UniversalClient, prefix string, cfg rate.Config) rate.Limiter {
	if client != nil {
		return rate.NewRedisLimiter(client, prefix, cfg)
	}
	return rate.NewSlidingWindow(cfg)
}

// monitorBlocklist feeds monitor block decisions back into engine metrics
// and the audit trail.
type monitorBlocklist struct {
	engine *Engine
}

func (b monitorBlocklist) Block(identifier, reason string) {
	b.engine.metrics.Inc(MetricAutoBlock)
	b.engine.audit.Emit(nil, AuditEvent{
		Timestamp: b.engine.now(),
		EventType: "security.block",
		IP:        identifier,
		Success:   true,
		Metadata:  map[string]string{"reason": reason},
	})
}
