package valkey

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/rueidis"

	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Compile-time check: Index implements storage.Index.
var _ storage.Index = (*Index)(nil)

const (
	defaultIndexName = "skillcourse:courses:idx"
	defaultKeyPrefix = "skillcourse:"

	fieldVector      = "vector"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldDifficulty  = "difficulty"
	fieldDuration    = "duration"
	fieldProvider    = "provider"
	fieldCategories  = "categories"
	fieldURL         = "url"
	fieldContentHash = "content_hash"
	fieldEmbedderID  = "embedder_id"
	fieldUpdatedAt   = "updated_at"
	fieldScore       = "__vector_score"
)

// returnFields are the hash fields a KNN query reads back
var returnFields = []string{
	fieldTitle, fieldDescription, fieldDifficulty, fieldDuration,
	fieldProvider, fieldCategories, fieldURL, fieldScore,
}

// Config holds connection parameters for a Valkey index.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	IndexName string
	KeyPrefix string
}

// Index is a storage.Index backed by Valkey search.
type Index struct {
	client    rueidis.Client
	indexName string
	prefix    string

	mu      sync.Mutex
	created bool
}

// NewIndex connects to Valkey.
func NewIndex(cfg Config) (*Index, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newIndex(client, cfg), nil
}

func newIndex(client rueidis.Client, cfg Config) *Index {
	name := cfg.IndexName
	if name == "" {
		name = defaultIndexName
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Index{client: client, indexName: name, prefix: prefix}
}

// Ping checks connectivity.
func (x *Index) Ping(ctx context.Context) error {
	if err := x.do(ctx, x.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (x *Index) Close() error {
	x.client.Close()
	return nil
}

func (x *Index) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return x.client.Do(ctx, cmd)
}

func (x *Index) b() rueidis.Builder {
	return x.client.B()
}

func (x *Index) courseKey(id string) string { return x.prefix + "course:" + id }
func (x *Index) metaKey() string            { return x.prefix + "meta" }

// Upsert inserts or replaces the entry for a course.
func (x *Index) Upsert(ctx context.Context, rec *storage.EmbeddingRecord) error {
	return x.UpsertBatch(ctx, []*storage.EmbeddingRecord{rec})
}

// UpsertBatch writes entries in one round-trip. Unlike the SQLite index a
// failed batch may be partially applied.
func (x *Index) UpsertBatch(ctx context.Context, recs []*storage.EmbeddingRecord) error {
	if len(recs) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(recs))
	for _, rec := range recs {
		if err := rec.Course.Validate(); err != nil {
			return err
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("course %s: empty vector", rec.Course.ID)
		}
		if len(rec.Vector) != len(recs[0].Vector) {
			return fmt.Errorf("course %s: dimension %d, batch uses %d",
				rec.Course.ID, len(rec.Vector), len(recs[0].Vector))
		}
		if rec.EmbedderID != recs[0].EmbedderID {
			return fmt.Errorf("%w: mixed embedders in one batch", types.ErrEmbedderMismatch)
		}
		fields, err := hashFields(rec)
		if err != nil {
			return err
		}
		cmd := x.b().Hset().Key(x.courseKey(rec.Course.ID)).FieldValue()
		for _, f := range fields {
			cmd = cmd.FieldValue(f[0], f[1])
		}
		cmds = append(cmds, cmd.Build())
	}

	if err := x.checkEmbedder(ctx, recs[0].EmbedderID); err != nil {
		return err
	}
	if err := x.ensureIndex(ctx, len(recs[0].Vector)); err != nil {
		return err
	}

	for i, res := range x.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("hset %s: %w", recs[i].Course.ID, err)
		}
	}
	return nil
}

// hashFields flattens a record in a fixed field order
func hashFields(rec *storage.EmbeddingRecord) ([][2]string, error) {
	c := rec.Course
	cats := c.Categories
	if cats == nil {
		cats = []string{}
	}
	catJSON, err := json.Marshal(cats)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return [][2]string{
		{fieldVector, vectorToBytes(rec.Vector)},
		{fieldTitle, c.Title},
		{fieldDescription, c.Description},
		{fieldDifficulty, string(c.Difficulty)},
		{fieldDuration, c.Duration},
		{fieldProvider, c.Provider},
		{fieldCategories, string(catJSON)},
		{fieldURL, c.URL},
		{fieldContentHash, rec.ContentHash},
		{fieldEmbedderID, rec.EmbedderID},
		{fieldUpdatedAt, updatedAt.Format(time.RFC3339)},
	}, nil
}

// checkEmbedder tags an untagged index and rejects any other embedder afterwards.
// HSETNX keeps two concurrent first writers from both claiming the tag.
func (x *Index) checkEmbedder(ctx context.Context, embedderID string) error {
	if embedderID == "" {
		return fmt.Errorf("%w: embedding record has no embedder tag", types.ErrEmbedderMismatch)
	}
	cmd := x.b().Hsetnx().Key(x.metaKey()).Field(fieldEmbedderID).Value(embedderID).Build()
	if err := x.do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("tag index: %w", err)
	}
	current, err := x.EmbedderID(ctx)
	if err != nil {
		return err
	}
	if current != embedderID {
		return fmt.Errorf("%w: index built with %s, got %s", types.ErrEmbedderMismatch, current, embedderID)
	}
	return nil
}

// ensureIndex creates the FT index once per process
func (x *Index) ensureIndex(ctx context.Context, dim int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.created {
		return nil
	}

	cmd := x.b().Arbitrary("FT.CREATE").Args(createArgs(x.indexName, x.prefix+"course:", dim)...).Build()
	if err := x.do(ctx, cmd).Error(); err != nil && !isRedisErr(err, "already exists") {
		return fmt.Errorf("create index: %w", err)
	}
	x.created = true
	return nil
}

func createArgs(name, prefix string, dim int) []string {
	return []string{
		name, "ON", "HASH", "PREFIX", "1", prefix,
		"SCHEMA",
		fieldDifficulty, "TAG",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
	}
}

// Query returns the k nearest entries to vector.
func (x *Index) Query(ctx context.Context, vector []float32, k int, filter *storage.IndexFilter) ([]storage.IndexHit, error) {
	n, err := x.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, types.ErrIndexEmpty
	}
	if k <= 0 || len(vector) == 0 {
		return []storage.IndexHit{}, nil
	}

	cmd := x.b().Arbitrary("FT.SEARCH").Args(searchArgs(x.indexName, vector, k, filter)...).Build()
	raw, err := x.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	return parseKNNResult(raw, x.courseKey(""))
}

func searchArgs(name string, vector []float32, k int, filter *storage.IndexFilter) []string {
	knn := fmt.Sprintf("[KNN %d @%s $BLOB]", k, fieldVector)
	query := "*=>" + knn
	if f := buildDifficultyFilter(filter); f != "" {
		query = "(" + f + ")=>" + knn
	}

	args := []string{name, query, "RETURN", strconv.Itoa(len(returnFields))}
	args = append(args, returnFields...)
	args = append(args,
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	)
	return args
}

// buildDifficultyFilter returns "@difficulty:{A|B}", or "" for no filter
func buildDifficultyFilter(filter *storage.IndexFilter) string {
	if filter == nil {
		return ""
	}
	tags := make([]string, 0, len(filter.Difficulties))
	for _, d := range filter.Difficulties {
		if d == types.DifficultyUnspecified {
			continue
		}
		tags = append(tags, tagEscaper.Replace(string(d)))
	}
	if len(tags) == 0 {
		return ""
	}
	return fmt.Sprintf("@%s:{%s}", fieldDifficulty, strings.Join(tags, "|"))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
	"\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^", "&", "\\&", "*", "\\*",
	"(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	"|", "\\|", " ", "\\ ", "/", "\\/",
)

// Count returns the number of indexed documents as reported by FT.INFO.
// A missing FT index counts as empty.
func (x *Index) Count(ctx context.Context) (int, error) {
	cmd := x.b().Arbitrary("FT.INFO").Args(x.indexName).Build()
	info, err := x.do(ctx, cmd).AsMap()
	if err != nil {
		if isMissingIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("index info: %w", err)
	}
	return parseNumDocs(info)
}

// isMissingIndex matches the RediSearch and valkey-search replies for an
// index that does not exist.
func isMissingIndex(err error) bool {
	return isRedisErr(err, "unknown index name") ||
		isRedisErr(err, "no such index") ||
		isRedisErr(err, "not found")
}

// Delete removes the entry for a course.
func (x *Index) Delete(ctx context.Context, courseID string) error {
	n, err := x.do(ctx, x.b().Del().Key(x.courseKey(courseID)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("delete %s: %w", courseID, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ContentHash returns the content hash stored with an entry.
func (x *Index) ContentHash(ctx context.Context, courseID string) (string, error) {
	cmd := x.b().Hget().Key(x.courseKey(courseID)).Field(fieldContentHash).Build()
	hash, err := x.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("read content hash %s: %w", courseID, err)
	}
	return hash, nil
}

// ListCourseIDs returns the IDs of all entries in order.
func (x *Index) ListCourseIDs(ctx context.Context) ([]string, error) {
	prefix := x.courseKey("")
	keys, err := x.scan(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, prefix)
	}
	sort.Strings(ids)
	return ids, nil
}

// EmbedderID returns the embedder tag, or "" when the index is untagged.
func (x *Index) EmbedderID(ctx context.Context) (string, error) {
	cmd := x.b().Hget().Key(x.metaKey()).Field(fieldEmbedderID).Build()
	id, err := x.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", fmt.Errorf("read embedder tag: %w", err)
	}
	return id, nil
}

// Reset drops the FT index, every course hash and the embedder tag.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	cmd := x.b().Arbitrary("FT.DROPINDEX").Args(x.indexName).Build()
	if err := x.do(ctx, cmd).Error(); err != nil && !isRedisErr(err, "unknown index name") {
		return fmt.Errorf("drop index: %w", err)
	}
	x.created = false

	keys, err := x.scan(ctx, x.courseKey("")+"*")
	if err != nil {
		return err
	}
	keys = append(keys, x.metaKey())
	if err := x.do(ctx, x.b().Del().Key(keys...).Build()).Error(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// scan iterates keys matching a pattern.
func (x *Index) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		cmd := x.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := x.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// isRedisErr checks if err is a server error containing substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
