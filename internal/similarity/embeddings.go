package similarity

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format of a word2vec artifact on disk.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

const (
	maxLineSize = 4 << 20
	// maxDim bounds the vector width a header may declare.
	maxDim = 10_000
)

var (
	ErrEmptyVocabulary = errors.New("embedding artifact has no usable vectors")
	errBadHeader       = errors.New("malformed word2vec header")
)

// Vectors is a read-only word to vector lookup.
type Vectors interface {
	Vector(word string) ([]float64, bool)
	Dim() int
	Len() int
}

// Embeddings is an in-memory word2vec table. It is never mutated after Load returns,
// so concurrent readers need no locking.
type Embeddings struct {
	dim     int
	vectors map[string][]float64
	words   []string
}

// NewEmbeddings builds a table from an in-memory map. All vectors must share one dimension.
func NewEmbeddings(vectors map[string][]float64) (*Embeddings, error) {
	e := &Embeddings{vectors: make(map[string][]float64, len(vectors))}
	for word, vec := range vectors {
		if e.dim == 0 {
			e.dim = len(vec)
		}
		if len(vec) != e.dim || e.dim == 0 {
			return nil, fmt.Errorf("vector for %q has dimension %d, want %d", word, len(vec), e.dim)
		}
		e.add(word, vec)
	}
	return e, nil
}

func (e *Embeddings) add(word string, vec []float64) bool {
	if _, ok := e.vectors[word]; ok {
		return false
	}
	e.vectors[word] = vec
	e.words = append(e.words, word)
	return true
}

func (e *Embeddings) Vector(word string) ([]float64, bool) {
	v, ok := e.vectors[word]
	return v, ok
}

func (e *Embeddings) Dim() int { return e.dim }

func (e *Embeddings) Len() int { return len(e.vectors) }

// Sample returns up to n words in file order.
func (e *Embeddings) Sample(n int) []string {
	if n > len(e.words) {
		n = len(e.words)
	}
	out := make([]string, n)
	copy(out, e.words[:n])
	return out
}

// LoadStats describes what a load pass saw.
type LoadStats struct {
	Format   Format
	Declared int
	Loaded   int
	Skipped  int
}

// ResolveFormat picks the on-disk format for a path.
func ResolveFormat(path string, format Format) Format {
	switch format {
	case FormatText, FormatBinary:
		return format
	}

	name := strings.ToLower(strings.TrimSuffix(path, ".gz"))
	if filepath.Ext(name) == ".bin" {
		return FormatBinary
	}
	return FormatText
}

// Load reads a word2vec artifact in text or binary form. Gzipped files are
// decompressed transparently.
func Load(path string, format Format) (*Embeddings, LoadStats, error) {
	format = ResolveFormat(path, format)
	stats := LoadStats{Format: format}

	file, err := os.Open(path)
	if err != nil {
		return nil, stats, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, stats, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var e *Embeddings
	switch format {
	case FormatBinary:
		e, err = readBinary(r, &stats)
	default:
		e, err = readText(r, &stats)
	}
	if err != nil {
		return nil, stats, err
	}

	stats.Loaded = e.Len()
	if e.Len() == 0 {
		return nil, stats, ErrEmptyVocabulary
	}
	return e, stats, nil
}

func readText(r io.Reader, stats *LoadStats) (*Embeddings, error) {
	e := &Embeddings{vectors: make(map[string][]float64)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	first := true
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if first {
			first = false
			if count, dim, ok := parseHeader(fields); ok {
				stats.Declared = count
				e.dim = dim
				continue
			}
		}

		if e.dim == 0 {
			e.dim = len(fields) - 1
		}
		if len(fields) != e.dim+1 || e.dim <= 0 {
			stats.Skipped++
			continue
		}

		vec, err := parseFloats(fields[1:])
		if err != nil {
			stats.Skipped++
			continue
		}
		if !e.add(fields[0], vec) {
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text embeddings: %w", err)
	}

	return e, nil
}

func readBinary(r io.Reader, stats *LoadStats) (*Embeddings, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read binary header: %w", err)
	}
	count, dim, ok := parseHeader(strings.Fields(header))
	if !ok {
		return nil, errBadHeader
	}
	stats.Declared = count

	e := &Embeddings{dim: dim, vectors: make(map[string][]float64)}
	raw := make([]float32, dim)

	for i := 0; i < count; i++ {
		word, err := br.ReadString(' ')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read word %d: %w", i, err)
		}
		word = strings.TrimSpace(word)

		if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("read vector for %q: %w", word, err)
		}

		vec := make([]float64, dim)
		valid := word != ""
		for j, f := range raw {
			v := float64(f)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				valid = false
			}
			vec[j] = v
		}
		if !valid || !e.add(word, vec) {
			stats.Skipped++
		}
	}

	return e, nil
}

func parseHeader(fields []string) (int, int, bool) {
	if len(fields) != 2 {
		return 0, 0, false
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return 0, 0, false
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim <= 0 || dim > maxDim {
		return 0, 0, false
	}
	return count, dim, true
}

func parseFloats(fields []string) ([]float64, error) {
	vec := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite component %q", f)
		}
		vec[i] = v
	}
	return vec, nil
}
