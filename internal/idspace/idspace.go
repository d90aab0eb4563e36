// Package idspace manages the persisted traversal sequence: the
// shuffled permutation of the platform's id space that fixes the crawl
// visit order across sweeps.
package idspace

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
)

// Generate returns a random permutation of [1, max]. Run once; the
// persisted result must stay stable across sweeps.
func Generate(max int64) []int64 {
	ids := make([]int64, max)
	for i := range ids {
		ids[i] = int64(i) + 1
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

// Save writes the sequence as newline-delimited decimal ids.
func Save(path string, ids []int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ids dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ids file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(strconv.FormatInt(id, 10) + "\n"); err != nil {
			return fmt.Errorf("write ids file %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush ids file %s: %w", path, err)
	}
	return nil
}

// Load reads a previously saved sequence.
func Load(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ids file %s: %w", path, err)
	}
	defer f.Close()

	var ids []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ids file %s: %w", path, err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ids file %s: %w", path, err)
	}
	return ids, nil
}

// IndexOf returns the position of id within the sequence.
func IndexOf(ids []int64, id int64) (int, bool) {
	for i, v := range ids {
		if v == id {
			return i, true
		}
	}
	return 0, false
}
