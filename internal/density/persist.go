package density

import (
	"encoding/json"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type tableFile struct {
	BucketMinutes int                  `json:"bucket_minutes"`
	Buckets       map[string][]float64 `json:"buckets"`
}

// MarshalTable encodes the table with "weekday:hour:MM" bucket keys.
func MarshalTable(table domain.DensityTable) ([]byte, error) {
	f := tableFile{
		BucketMinutes: table.BucketMinutes,
		Buckets:       make(map[string][]float64, len(table.Buckets)),
	}
	for k, seq := range table.Buckets {
		f.Buckets[k.String()] = seq
	}
	return json.Marshal(f)
}

func UnmarshalTable(data []byte) (domain.DensityTable, error) {
	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.DensityTable{}, fmt.Errorf("unmarshal density table: %w", err)
	}

	table := domain.DensityTable{
		BucketMinutes: f.BucketMinutes,
		Buckets:       make(map[domain.DensityKey][]float64, len(f.Buckets)),
	}
	if table.BucketMinutes <= 0 {
		table.BucketMinutes = DefaultBucketMinutes
	}
	for raw, seq := range f.Buckets {
		k, err := ParseKey(raw)
		if err != nil {
			return domain.DensityTable{}, fmt.Errorf("unmarshal density table: %w", err)
		}
		table.Buckets[k] = seq
	}
	return table, nil
}

type sampleRecord struct {
	At      time.Time `json:"at"`
	Pickups []int     `json:"pickups"`
}

// MarshalSamples encodes raw density samples as a JSON array.
func MarshalSamples(samples []domain.DensitySample) ([]byte, error) {
	recs := make([]sampleRecord, len(samples))
	for i, s := range samples {
		recs[i] = sampleRecord{At: s.At, Pickups: s.Pickups}
	}
	return json.Marshal(recs)
}

func UnmarshalSamples(data []byte) ([]domain.DensitySample, error) {
	var recs []sampleRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal density samples: %w", err)
	}
	out := make([]domain.DensitySample, len(recs))
	for i, r := range recs {
		out[i] = domain.DensitySample{At: r.At, Pickups: r.Pickups}
	}
	return out, nil
}

// ParseKey parses a "weekday:hour:MM" bucket key.
func ParseKey(s string) (domain.DensityKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return domain.DensityKey{}, fmt.Errorf("parse density key %q: want weekday:hour:minute", s)
	}

	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return domain.DensityKey{}, fmt.Errorf("parse density key %q: %w", s, err)
		}
		vals[i] = n
	}

	k := domain.DensityKey{Weekday: vals[0], Hour: vals[1], Minute: vals[2]}
	if k.Weekday < 0 || k.Weekday > 6 || k.Hour < 0 || k.Hour > 23 || k.Minute < 0 || k.Minute > 59 {
		return domain.DensityKey{}, fmt.Errorf("parse density key %q: out of range", s)
	}
	return k, nil
}

// SaveFile writes the table to path, replacing any previous file atomically.
func SaveFile(path string, table domain.DensityTable) error {
	data, err := MarshalTable(table)
	if err != nil {
		return fmt.Errorf("save density table: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".density-*.json")
	if err != nil {
		return fmt.Errorf("save density table: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save density table: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save density table: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save density table: rename: %w", err)
	}
	return nil
}

func LoadFile(path string) (domain.DensityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DensityTable{}, fmt.Errorf("load density table %q: %w", path, err)
	}
	return UnmarshalTable(data)
}

// LoadOrBuild returns the table stored at path, or builds one from the
// samples and stores it when the file does not exist yet.
func LoadOrBuild(path string, samples []domain.DensitySample, bucketMinutes int) (domain.DensityTable, error) {
	table, err := LoadFile(path)
	if err == nil {
		return table, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return domain.DensityTable{}, err
	}

	table = Build(samples, bucketMinutes)
	if err := SaveFile(path, table); err != nil {
		slog.Warn("density table not persisted", "path", path, "err", err)
	}
	return table, nil
}
