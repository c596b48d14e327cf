// Package authz answers "may this user do this here" by merging role
// defaults with stored group and direct rules.
package authz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// RuleSource is the read side of the stores. Each call is expected to be a
// single round trip.
type RuleSource interface {
	UserRole(ctx context.Context, userID string) (permission.Role, error)
	GroupRulesForUser(ctx context.Context, userID string) ([]permission.Rule, error)
	DirectRulesForUser(ctx context.Context, userID string) ([]permission.Rule, error)
	SchoolInstitution(ctx context.Context, schoolID string) (string, error)
}

// Generation reports the current rule set version.
type Generation interface {
	Current(ctx context.Context) (uint64, error)
}

// Options configures a Resolver. A zero CacheSize or a nil Generation
// disables caching.
type Options struct {
	Generation Generation
	CacheSize  int
	CacheTTL   time.Duration
	Metrics    *Metrics
	Logger     logrus.FieldLogger
}

// Resolver computes effective permissions. It holds no per-request state and
// is safe for concurrent use.
type Resolver struct {
	source  RuleSource
	gen     Generation
	cache   *expirable.LRU[string, snapshot]
	metrics *Metrics
	log     logrus.FieldLogger
}

// snapshot is everything the merge needs for one (user, context).
type snapshot struct {
	role    permission.Role
	context permission.Context
	groups  []permission.Rule
	direct  []permission.Rule
}

func NewResolver(source RuleSource, opts Options) *Resolver {
	r := &Resolver{
		source:  source,
		gen:     opts.Generation,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if opts.CacheSize > 0 && opts.Generation != nil {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		r.cache = expirable.NewLRU[string, snapshot](opts.CacheSize, nil, ttl)
	}
	return r
}

// Resolve returns the full matrix for userID at c.
func (r *Resolver) Resolve(ctx context.Context, userID string, c permission.Context) (permission.Matrix, error) {
	defer r.metrics.observeDuration("resolve", time.Now())
	snap, err := r.load(ctx, userID, c)
	if err != nil {
		return permission.Matrix{}, err
	}
	return permission.Resolve(snap.role, snap.groups, snap.direct, snap.context), nil
}

// HasPermission answers a single key. A key with no rule anywhere is false,
// not an error; only an unknown user fails (ErrNotFound).
func (r *Resolver) HasPermission(ctx context.Context, userID string, key permission.Key, c permission.Context) (bool, error) {
	d, err := r.Explain(ctx, userID, key, c)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Explain is HasPermission with provenance.
func (r *Resolver) Explain(ctx context.Context, userID string, key permission.Key, c permission.Context) (permission.Decision, error) {
	defer r.metrics.observeDuration("check", time.Now())
	snap, err := r.load(ctx, userID, c)
	if err != nil {
		return permission.Decision{Key: key, Context: c}, err
	}
	d := permission.Decide(snap.role, snap.groups, snap.direct, snap.context, key)
	r.metrics.observeDecision(d)
	return d, nil
}

func (r *Resolver) load(ctx context.Context, userID string, c permission.Context) (snapshot, error) {
	if err := c.Validate(); err != nil {
		return snapshot{}, err
	}
	if userID == "" {
		return snapshot{}, fmt.Errorf("user: %w", errors.ErrNotFound)
	}

	cacheKey := ""
	if r.cache != nil {
		gen, err := r.gen.Current(ctx)
		if err != nil {
			r.log.WithError(err).Warn("permission generation unavailable, bypassing cache")
			r.metrics.observeCache("bypass")
		} else {
			// The generation is read before the rules, so a write that lands
			// mid-load is keyed under the older generation and never served.
			cacheKey = userID + "|" + c.String() + "|" + strconv.FormatUint(gen, 10)
			if snap, ok := r.cache.Get(cacheKey); ok {
				r.metrics.observeCache("hit")
				return snap, nil
			}
			r.metrics.observeCache("miss")
		}
	}

	snap, err := r.fetch(ctx, userID, c)
	if err != nil {
		return snapshot{}, err
	}
	if cacheKey != "" {
		r.cache.Add(cacheKey, snap)
	}
	return snap, nil
}

// fetch issues at most four reads regardless of how many keys exist.
func (r *Resolver) fetch(ctx context.Context, userID string, c permission.Context) (snapshot, error) {
	role, err := r.source.UserRole(ctx, userID)
	if err != nil {
		return snapshot{}, err
	}
	if c.Type == permission.ContextSchool && c.InstitutionID == "" {
		inst, err := r.source.SchoolInstitution(ctx, c.ID)
		switch {
		case err == nil:
			c.InstitutionID = inst
		case errors.Is(err, errors.ErrNotFound):
			r.log.WithField("school_id", c.ID).Debug("unknown school, institution rules will not apply")
		default:
			return snapshot{}, err
		}
	}
	groups, err := r.source.GroupRulesForUser(ctx, userID)
	if err != nil {
		return snapshot{}, fmt.Errorf("load group rules: %w", err)
	}
	direct, err := r.source.DirectRulesForUser(ctx, userID)
	if err != nil {
		return snapshot{}, fmt.Errorf("load direct rules: %w", err)
	}
	return snapshot{role: role, context: c, groups: groups, direct: direct}, nil
}

// Purge drops every cached snapshot.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}
