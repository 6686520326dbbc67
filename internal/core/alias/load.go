package alias

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agenthands/graphrag/internal/core/model"
)

const synonymDelim = "|"

// EntitySource enumerates every entity in the graph with its aliases.
type EntitySource interface {
	AllEntities(ctx context.Context) ([]model.Entity, error)
}

// AddSource adds every entity reported by src.
func (b *Builder) AddSource(ctx context.Context, src EntitySource) (int, error) {
	entities, err := src.AllEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list graph entities: %w", err)
	}
	for _, e := range entities {
		b.Add(e)
	}
	return len(entities), nil
}

// AddDir loads every nodes_<type>.csv file in dir, the layout written by the
// graph build. The type comes from a "type" column when present, otherwise
// from the file name.
func (b *Builder) AddDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "nodes_*.csv"))
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no nodes_*.csv files in %s", dir)
	}
	sort.Strings(paths)

	total := 0
	for _, p := range paths {
		slug := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "nodes_"), ".csv")
		n, err := b.addFile(p, model.ParseEntityType(slug))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (b *Builder) addFile(path string, fallback model.EntityType) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := b.AddCSV(f, fallback)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// AddCSV reads entities from a CSV with a header row. Recognised columns are
// id, label (or name), synonyms (pipe-delimited), type, and gene_symbol or
// symbol as an extra alias.
func (b *Builder) AddCSV(r io.Reader, fallback model.EntityType) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	idCol, ok := col["id"]
	if !ok {
		return 0, errors.New("missing id column")
	}
	nameCol := firstCol(col, "label", "name")
	synCol := firstCol(col, "synonyms", "aliases")
	typeCol := firstCol(col, "type")
	extraCols := []int{firstCol(col, "gene_symbol"), firstCol(col, "symbol")}

	count := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read row: %w", err)
		}

		e := model.Entity{ID: field(rec, idCol), Name: field(rec, nameCol), Type: fallback}
		if e.ID == "" {
			continue
		}
		if t := field(rec, typeCol); t != "" {
			e.Type = model.ParseEntityType(t)
		}
		for _, s := range strings.Split(field(rec, synCol), synonymDelim) {
			if s = strings.TrimSpace(s); s != "" {
				e.Aliases = append(e.Aliases, s)
			}
		}
		for _, c := range extraCols {
			if s := field(rec, c); s != "" {
				e.Aliases = append(e.Aliases, s)
			}
		}
		b.Add(e)
		count++
	}
	return count, nil
}

func firstCol(col map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := col[n]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
