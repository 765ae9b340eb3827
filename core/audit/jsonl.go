package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
)

// JSONLStore appends decisions to a JSONL file, one record per line.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file if needed and returns the store.
func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

// Append writes the decision as one JSON line.
func (s *JSONLStore) Append(_ context.Context, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(d)
}

// Query scans the file and returns matching decisions ordered by
// timestamp. Corrupt lines are skipped.
func (s *JSONLStore) Query(_ context.Context, q Query) ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []Decision
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var d Decision
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			continue
		}
		if !match(d, q) {
			continue
		}
		res = append(res, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

// Close implements Store.
func (s *JSONLStore) Close() error { return nil }
