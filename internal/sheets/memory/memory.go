// Package memory provides in-process implementations of the sheets ports for
// development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"famfin/internal/core"
	"famfin/internal/sheets"
)

var (
	_ sheets.TransactionExporter = (*Store)(nil)
	_ sheets.CategoryReader      = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	expense []string
	income  []string
	rows    map[int64][]any
}

func New(expense, income []string) *Store {
	return &Store{expense: dedupe(expense), income: dedupe(income), rows: make(map[int64][]any)}
}

// NewFromFiles reads seed_expense_categories.txt and seed_income_categories.txt
// from base, one name per line, falling back to built-in lists.
func NewFromFiles(base string) *Store {
	expense := readLines(filepath.Join(base, "seed_expense_categories.txt"))
	income := readLines(filepath.Join(base, "seed_income_categories.txt"))
	if len(expense) == 0 {
		expense = []string{"Housing", "Utilities", "Groceries", "Transportation", "Dining", "Entertainment", "Savings"}
	}
	if len(income) == 0 {
		income = []string{"Salary", "Bonus", "Other Income"}
	}
	return New(expense, income)
}

// Upsert stores the exported row and returns a synthetic reference.
func (s *Store) Upsert(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID] = sheets.Row(t)
	return fmt.Sprintf("mem:%d", t.ID), nil
}

func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Rows returns the exported rows ordered by transaction id.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([][]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, append([]any(nil), s.rows[id]...))
	}
	return out
}

// List returns expense and income category names.
func (s *Store) List(_ context.Context) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.expense...), append([]string(nil), s.income...), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
