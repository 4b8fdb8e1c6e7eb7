package valkey

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/redis/rueidis"

	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// parseKNNResult decodes an FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...]
func parseKNNResult(raw []rueidis.RedisMessage, keyPrefix string) ([]storage.IndexHit, error) {
	if len(raw) == 0 {
		return []storage.IndexHit{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	hits := make([]storage.IndexHit, 0, total)

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		hit, err := hitFromFields(strings.TrimPrefix(key, keyPrefix), parseFieldPairs(fields))
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	// KNN replies are not guaranteed to be ordered
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Course.ID < hits[j].Course.ID
	})
	return hits, nil
}

func hitFromFields(id string, m map[string]string) (storage.IndexHit, error) {
	hit := storage.IndexHit{
		Course: types.Course{
			ID:          id,
			Title:       m[fieldTitle],
			Description: m[fieldDescription],
			Difficulty:  types.Difficulty(m[fieldDifficulty]),
			Duration:    m[fieldDuration],
			Provider:    m[fieldProvider],
			URL:         m[fieldURL],
			Categories:  []string{},
		},
	}

	if raw := m[fieldCategories]; raw != "" && raw != "[]" {
		if err := json.Unmarshal([]byte(raw), &hit.Course.Categories); err != nil {
			return hit, fmt.Errorf("course %s: decode categories: %w", id, err)
		}
	}

	score, ok := m[fieldScore]
	if !ok {
		return hit, fmt.Errorf("course %s: missing %s", id, fieldScore)
	}
	d, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return hit, fmt.Errorf("course %s: parse distance: %w", id, err)
	}
	hit.Distance = d
	return hit, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// parseNumDocs reads num_docs from an FT.INFO reply. Servers report it as an
// integer, a double or a numeric string.
func parseNumDocs(info map[string]rueidis.RedisMessage) (int, error) {
	v, ok := info["num_docs"]
	if !ok {
		return 0, fmt.Errorf("index info: num_docs missing")
	}
	if n, err := v.AsInt64(); err == nil {
		return int(n), nil
	}
	f, err := v.AsFloat64()
	if err != nil {
		return 0, fmt.Errorf("index info: parse num_docs: %w", err)
	}
	return int(f), nil
}
