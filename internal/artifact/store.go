// Package artifact persists each pipeline stage's output as a JSON file.
// Artifacts double as the resumption mechanism: a present, readable
// artifact means its stage already ran.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/factweave/internal/model"
)

// Stage artifact file names. These names are part of the tool's contract:
// users inspect and delete them to control resumption.
const (
	FileClaims   = "claims_from_articles.json"
	FileQueries  = "search_queries.json"
	FileEvidence = "filtered_articles.json"
	FileVerdicts = "fact_verification_results.json"
)

// Store reads and writes stage artifacts under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Has reports whether an artifact exists and is a regular file.
func (s *Store) Has(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// save writes v as indented JSON via a temp file and rename, so a crash
// mid-write never leaves a truncated artifact behind.
func (s *Store) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

func (s *Store) load(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// SaveClaims persists the extraction stage output.
func (s *Store) SaveClaims(claims []model.Claim) error {
	return s.save(FileClaims, claims)
}

// LoadClaims reads a previously saved extraction output.
func (s *Store) LoadClaims() ([]model.Claim, error) {
	var claims []model.Claim
	if err := s.load(FileClaims, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// SaveQueries persists the query formulation stage output.
func (s *Store) SaveQueries(queries []model.SearchQuery) error {
	return s.save(FileQueries, queries)
}

// LoadQueries reads a previously saved formulation output.
func (s *Store) LoadQueries() ([]model.SearchQuery, error) {
	var queries []model.SearchQuery
	if err := s.load(FileQueries, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

// SaveEvidence persists the retrieval stage output keyed by claim ID.
func (s *Store) SaveEvidence(sets map[string]*model.FilteredEvidenceSet) error {
	return s.save(FileEvidence, sets)
}

// LoadEvidence reads a previously saved retrieval output.
func (s *Store) LoadEvidence() (map[string]*model.FilteredEvidenceSet, error) {
	sets := make(map[string]*model.FilteredEvidenceSet)
	if err := s.load(FileEvidence, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// SaveVerdicts persists the verification stage output.
func (s *Store) SaveVerdicts(verdicts []model.VerdictRecord) error {
	return s.save(FileVerdicts, verdicts)
}

// LoadVerdicts reads a previously saved verification output.
func (s *Store) LoadVerdicts() ([]model.VerdictRecord, error) {
	var verdicts []model.VerdictRecord
	if err := s.load(FileVerdicts, &verdicts); err != nil {
		return nil, err
	}
	return verdicts, nil
}
