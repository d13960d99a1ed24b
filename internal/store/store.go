// internal/store/store.go

// Package store caches and persists finished blueprints. It guarantees
// at-most-one concurrent build per fingerprint; concurrent callers for the
// same fingerprint share the in-flight result.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"blueprint-engine/internal/common/database"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/common/metrics"
	"blueprint-engine/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "blueprint:fp:"

// BuilderFunc produces a fresh blueprint on a cache miss.
type BuilderFunc func(ctx context.Context) (*models.Blueprint, error)

type Store struct {
	db           *sql.DB
	rdb          *redis.Client
	es           *database.ElasticsearchClient // optional
	esIndex      string
	ttl          time.Duration
	defaultCount int
	group        singleflight.Group
	logger       logger.Logger
}

func New(db *sql.DB, rdb *redis.Client, es *database.ElasticsearchClient, esIndex string, ttl time.Duration, defaultResultCount int, log logger.Logger) *Store {
	if defaultResultCount <= 0 {
		defaultResultCount = 10
	}
	return &Store{
		db:           db,
		rdb:          rdb,
		es:           es,
		esIndex:      esIndex,
		ttl:          ttl,
		defaultCount: defaultResultCount,
		logger:       log.WithFields(map[string]interface{}{"component": "blueprint-store"}),
	}
}

// Fingerprint derives the cache identity for a request. Only the inputs that
// change blueprint content participate: the normalized keyword, the effective
// result count, and the caller's own content. An unset result count hashes as
// the default the build would resolve it to, so an explicit default and an
// omitted one share one artifact. ForceRebuild and notification targets are
// delivery concerns and deliberately excluded.
func Fingerprint(keyword string, opts models.BuildOptions, defaultResultCount int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
	count := opts.ResultCount
	if count <= 0 {
		count = defaultResultCount
	}
	canonical := fmt.Sprintf("%s|%d|%s", normalized, count, opts.OwnContent)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// GetOrBuild returns the cached blueprint for the request fingerprint, or
// runs build exactly once and stores the result. The second return value
// reports whether the blueprint came from cache (or from sharing another
// caller's in-flight build) rather than a fresh build on behalf of this
// caller. Expiry is lazy: the redis TTL decides staleness on the next lookup,
// nothing sweeps in the background.
func (s *Store) GetOrBuild(ctx context.Context, keyword string, opts models.BuildOptions, build BuilderFunc) (*models.Blueprint, bool, error) {
	fp := Fingerprint(keyword, opts, s.defaultCount)

	if !opts.ForceRebuild {
		if bp, err := s.lookup(ctx, fp); err == nil && bp != nil {
			metrics.CacheHits.Inc()
			return bp, true, nil
		}
	}
	metrics.CacheMisses.Inc()

	v, err, shared := s.group.Do(fp, func() (interface{}, error) {
		// A caller that queued behind the winner may find the result
		// already cached by the time it gets here.
		if !opts.ForceRebuild {
			if bp, err := s.lookup(ctx, fp); err == nil && bp != nil {
				return bp, nil
			}
		}

		bp, err := build(ctx)
		if err != nil {
			return nil, err
		}
		s.persist(ctx, fp, bp)
		return bp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*models.Blueprint), shared, nil
}

func (s *Store) lookup(ctx context.Context, fp string) (*models.Blueprint, error) {
	raw, err := s.rdb.Get(ctx, cacheKeyPrefix+fp).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("cache lookup failed", map[string]interface{}{"fingerprint": fp, "error": err.Error()})
		return nil, err
	}

	var bp models.Blueprint
	if err := json.Unmarshal([]byte(raw), &bp); err != nil {
		s.logger.Warn("cached blueprint unreadable, treating as miss", map[string]interface{}{"fingerprint": fp, "error": err.Error()})
		return nil, nil
	}
	return &bp, nil
}

// persist writes the finished blueprint everywhere it lives: postgres is the
// system of record, redis carries the TTL'd cache entry, elasticsearch gets a
// best-effort copy for keyword search. Cache and index failures are logged
// but do not fail an otherwise successful build.
func (s *Store) persist(ctx context.Context, fp string, bp *models.Blueprint) {
	payload, err := json.Marshal(bp)
	if err != nil {
		s.logger.Error("blueprint serialization failed", map[string]interface{}{"id": bp.ID, "error": err.Error()})
		return
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blueprints (id, fingerprint, keyword, state, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		bp.ID, fp, bp.Keyword, string(bp.State), payload, bp.CreatedAt,
	)
	if err != nil {
		s.logger.Error("blueprint insert failed", map[string]interface{}{"id": bp.ID, "error": err.Error()})
	}

	if err := s.rdb.Set(ctx, cacheKeyPrefix+fp, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("blueprint cache write failed", map[string]interface{}{"id": bp.ID, "error": err.Error()})
	}

	s.index(ctx, bp, payload)
}

func (s *Store) index(ctx context.Context, bp *models.Blueprint, payload []byte) {
	if s.es == nil {
		return
	}
	es := s.es.GetClient()
	res, err := es.Index(
		s.esIndex,
		bytes.NewReader(payload),
		es.Index.WithDocumentID(bp.ID),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.Warn("blueprint index failed", map[string]interface{}{"id": bp.ID, "error": err.Error()})
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		s.logger.Warn("blueprint index rejected", map[string]interface{}{"id": bp.ID, "status": res.StatusCode})
	}
}

// GetByID loads a blueprint from the system of record.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Blueprint, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM blueprints WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrBlueprintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blueprint query: %w", err)
	}

	var bp models.Blueprint
	if err := json.Unmarshal(payload, &bp); err != nil {
		return nil, fmt.Errorf("blueprint decode: %w", err)
	}
	return &bp, nil
}

// SearchByKeyword finds past blueprints whose keyword matches the query.
// Elasticsearch serves the search when configured; otherwise postgres answers
// with a substring match.
func (s *Store) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]models.Blueprint, error) {
	if limit <= 0 {
		limit = 10
	}
	if s.es != nil {
		return s.searchES(ctx, keyword, limit)
	}
	return s.searchPostgres(ctx, keyword, limit)
}

func (s *Store) searchES(ctx context.Context, keyword string, limit int) ([]models.Blueprint, error) {
	query := map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"match": map[string]interface{}{"keyword": keyword}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	es := s.es.GetClient()
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(s.esIndex),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("blueprint search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("blueprint search: status %d", res.StatusCode)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Blueprint `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("blueprint search decode: %w", err)
	}

	out := make([]models.Blueprint, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}

func (s *Store) searchPostgres(ctx context.Context, keyword string, limit int) ([]models.Blueprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM blueprints WHERE keyword ILIKE '%' || $1 || '%' ORDER BY created_at DESC LIMIT $2`,
		keyword, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("blueprint search: %w", err)
	}
	defer rows.Close()

	out := make([]models.Blueprint, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var bp models.Blueprint
		if err := json.Unmarshal(payload, &bp); err != nil {
			continue
		}
		out = append(out, bp)
	}
	return out, rows.Err()
}
