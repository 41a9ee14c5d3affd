package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/legojeon/report-coach/internal/domain"
)

// chunkNamespace seeds the deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1d3c6e-58a4-4a77-9c57-2b8f0d1f7a01")

// reportFile is a corpus file named "<number>_<anything>.json".
type reportFile struct {
	Number int
	Name   string
	Path   string
}

type rawItem struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// discover lists report files in dir ordered by report number, then name.
// Files without a numeric prefix are returned separately.
func discover(dir string) ([]reportFile, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", dir, err)
	}

	var files []reportFile
	var ignored []string
	for _, p := range paths {
		name := filepath.Base(p)
		prefix, _, ok := strings.Cut(name, "_")
		n, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			ignored = append(ignored, name)
			continue
		}
		files = append(files, reportFile{Number: n, Name: name, Path: p})
	}
	slices.SortFunc(files, func(a, b reportFile) int {
		if a.Number != b.Number {
			return a.Number - b.Number
		}
		return strings.Compare(a.Name, b.Name)
	})
	return files, ignored, nil
}

// loadFile parses one report file into chunks. Items with empty text or a
// non-scalar metadata value are counted as skipped.
func loadFile(f reportFile) ([]domain.Chunk, int, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", f.Name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []rawItem
	if err := dec.Decode(&items); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", f.Name, err)
	}

	chunks := make([]domain.Chunk, 0, len(items))
	skipped := 0
	for i, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			skipped++
			continue
		}
		meta, ok := flattenMetadata(it.Metadata)
		if !ok {
			skipped++
			continue
		}
		if meta[domain.MetaReportNumber] == "" {
			meta[domain.MetaReportNumber] = strconv.Itoa(f.Number)
		}
		chunks = append(chunks, domain.Chunk{
			ID:       chunkID(f, i),
			Content:  it.Text,
			Metadata: meta,
		})
	}
	return chunks, skipped, nil
}

func chunkID(f reportFile, index int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%d/%s/%d", f.Number, f.Name, index)).String()
}

// flattenMetadata stringifies scalar values. ok is false when any value is an object or array.
func flattenMetadata(in map[string]any) (map[string]string, bool) {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		case json.Number:
			out[k] = x.String()
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			return nil, false
		}
	}
	return out, true
}
