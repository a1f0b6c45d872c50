// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/id/uuid"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for enrichment rows.
type StoreConfig struct {
	DSN             string
	LinksTable      string
	ProfilesTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes fetch outcomes and resolved profiles into Postgres.
type Store struct {
	pool          execCloser
	linksTable    string
	profilesTable string
	ids           *uuid.Generator
	now           func() time.Time
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	linksTable, profilesTable, err := tableNames(cfg.LinksTable, cfg.ProfilesTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		pool:          pool,
		linksTable:    linksTable,
		profilesTable: profilesTable,
		ids:           uuid.New(),
		now:           time.Now,
	}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool execCloser, linksTable, profilesTable string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	lt, pt, err := tableNames(linksTable, profilesTable)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, linksTable: lt, profilesTable: pt, ids: uuid.New(), now: time.Now}, nil
}

func tableNames(links, profiles string) (string, string, error) {
	if links == "" {
		links = "social_links"
	}
	if profiles == "" {
		profiles = "social_profiles"
	}
	for _, name := range []string{links, profiles} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return links, profiles, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveFetch inserts one fetch outcome and its extracted links.
func (s *Store) SaveFetch(ctx context.Context, result enrich.FetchResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("enrichment store is not configured")
	}
	if result.URL == "" {
		return fmt.Errorf("result url is required")
	}
	socialsJSON, err := json.Marshal(result.Socials)
	if err != nil {
		return fmt.Errorf("marshal socials: %w", err)
	}
	twitterAllJSON, err := json.Marshal(result.TwitterAll)
	if err != nil {
		return fmt.Errorf("marshal twitter_all: %w", err)
	}
	headersJSON, err := json.Marshal(normalizeHeaders(result.Headers))
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	fetched_at,
	url,
	final_url,
	status_code,
	ok,
	page_title,
	socials,
	twitter_all,
	headers,
	antibot_detected,
	antibot_kind,
	duration_ms,
	error_text
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)`, s.linksTable)

	fetchedAt := result.Timing.End
	if fetchedAt.IsZero() {
		fetchedAt = s.now().UTC()
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate row id: %w", err)
	}
	args := []any{
		id,
		fetchedAt,
		result.URL,
		result.FinalURL,
		result.Status,
		result.OK,
		result.PageTitle,
		socialsJSON,
		twitterAllJSON,
		headersJSON,
		result.AntiBot.Detected,
		result.AntiBot.Kind,
		result.Timing.Duration.Milliseconds(),
		result.Error,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert fetch: %w", err)
	}
	return nil
}

// SaveProfile upserts a resolved social profile keyed by handle.
func (s *Store) SaveProfile(ctx context.Context, profile enrich.SocialProfile) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("enrichment store is not configured")
	}
	if profile.Handle == "" {
		return fmt.Errorf("profile handle is required")
	}
	tweetsJSON, err := json.Marshal(profile.Tweets)
	if err != nil {
		return fmt.Errorf("marshal tweets: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	handle,
	resolved_at,
	url,
	ok,
	name,
	bio,
	location,
	website,
	verified,
	avatar,
	banner,
	followers,
	following,
	posts,
	tweets,
	source,
	fallback,
	attempts,
	error_text
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (handle) DO UPDATE SET
	resolved_at = EXCLUDED.resolved_at,
	url = EXCLUDED.url,
	ok = EXCLUDED.ok,
	name = EXCLUDED.name,
	bio = EXCLUDED.bio,
	location = EXCLUDED.location,
	website = EXCLUDED.website,
	verified = EXCLUDED.verified,
	avatar = EXCLUDED.avatar,
	banner = EXCLUDED.banner,
	followers = EXCLUDED.followers,
	following = EXCLUDED.following,
	posts = EXCLUDED.posts,
	tweets = EXCLUDED.tweets,
	source = EXCLUDED.source,
	fallback = EXCLUDED.fallback,
	attempts = EXCLUDED.attempts,
	error_text = EXCLUDED.error_text`, s.profilesTable)

	args := []any{
		profile.Handle,
		s.now().UTC(),
		profile.URL,
		profile.OK,
		profile.Name,
		profile.Bio,
		profile.Location,
		profile.Website,
		profile.Verified,
		profile.Avatar,
		profile.Banner,
		profile.Followers,
		profile.Following,
		profile.Posts,
		tweetsJSON,
		string(profile.Source),
		profile.Fallback,
		profile.Attempts,
		profile.Error,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func normalizeHeaders(h http.Header) map[string][]string {
	if len(h) == 0 {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(h))
	for k, values := range h {
		out[k] = append([]string(nil), values...)
	}
	return out
}
