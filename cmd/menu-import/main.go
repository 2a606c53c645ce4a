// Command menu-import loads menu dumps (gzip-compressed JSON lines) into the
// menu table. A dish is identified by its name, case-insensitively; when the
// same dish appears in several dumps the one from the later file wins.
//
// Dumps are read twice. Pass 1 builds one bloom filter of dish names per
// file. Pass 2 decodes every file and sets aside records whose name may
// occur in a later file, so only possibly-duplicated dishes are compared
// exactly.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/storage/postgres"
)

const (
	defaultCapacity = 1_000_000
	bloomFPR        = 0.001
	progressEvery   = 100_000
	maxLineSize     = 1 << 20
)

// record is one dish read from a dump.
type record struct {
	item menu.MenuItem
	file int
	line int
}

// fileResult holds what pass 2 found in a single file.
type fileResult struct {
	// kept are dishes no later file can contain.
	kept map[string]record
	// shadowed are dishes some later file's filter reports as present.
	shadowed map[string]record
	invalid  int
}

// summary describes the outcome of merging all files.
type summary struct {
	items      []menu.MenuItem
	duplicates int
	invalid    int
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		capacity    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing menu dumps")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob of dump files inside data-dir, processed in name order")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", defaultCapacity, "expected dishes per dump, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "merge dumps and report without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, capacity, dryRun); err != nil {
		slog.Error("menu import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, capacity uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "list dumps")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	sort.Strings(files)

	res, err := mergeDumps(ctx, files, capacity)
	if err != nil {
		return err
	}

	slog.Info("dumps merged",
		slog.Int("files", len(files)),
		slog.Int("dishes", len(res.items)),
		slog.Int("duplicates", res.duplicates),
		slog.Int("invalid", res.invalid),
	)

	if dryRun || len(res.items) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeMenu(ctx, postgres.NewMenuRepository(pool), res.items); err != nil {
		return errors.Wrap(err, "write menu to database")
	}

	return nil
}

// mergeDumps runs both passes over files and resolves duplicates.
func mergeDumps(ctx context.Context, files []string, capacity uint) (*summary, error) {
	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Decode dishes, setting aside possible duplicates.
	slog.Info("pass 2: decoding dishes")

	results, err := decodeFiles(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "decode dumps")
	}

	return resolve(files, results), nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count int

			if err := streamGzFile(ctx, f, func(_ int, line []byte) {
				name, err := decodeName(line)
				if err != nil || name == "" {
					return
				}
				filter.AddString(dishKey(name))
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", f), slog.Int("dishes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}

			slog.Info("pass 1 complete", slog.String("file", f), slog.Int("dishes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// decodeFiles decodes every file concurrently. A record goes to shadowed
// when any later file's filter may contain its name.
func decodeFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res := fileResult{
				kept:     make(map[string]record),
				shadowed: make(map[string]record),
			}

			if err := streamGzFile(ctx, f, func(lineNo int, line []byte) {
				item, err := decodeItem(line)
				if err != nil {
					res.invalid++
					slog.Warn("skipping invalid dish",
						slog.String("file", f),
						slog.Int("line", lineNo),
						slog.String("error", err.Error()),
					)
					return
				}

				key := dishKey(item.Name)
				rec := record{item: item, file: i, line: lineNo}
				for _, later := range filters[i+1:] {
					if later.TestString(key) {
						res.shadowed[key] = rec
						return
					}
				}
				res.kept[key] = rec
			}); err != nil {
				return errors.Wrapf(err, "decode %s", f)
			}

			slog.Info("pass 2 complete",
				slog.String("file", f),
				slog.Int("dishes", len(res.kept)+len(res.shadowed)),
				slog.Int("possible_duplicates", len(res.shadowed)),
			)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolve merges per-file results. Kept records are unique across files
// because bloom filters have no false negatives. Shadowed records are
// compared exactly: the record from the latest file wins and filter false
// positives are restored.
func resolve(files []string, results []fileResult) *summary {
	final := make(map[string]record)
	s := &summary{}
	for _, r := range results {
		s.invalid += r.invalid
		for key, rec := range r.kept {
			final[key] = rec
		}
	}

	for _, r := range results {
		for key, rec := range r.shadowed {
			existing, ok := final[key]
			if ok {
				s.duplicates++
				winner, loser := existing, rec
				if rec.file > existing.file {
					winner, loser = rec, existing
					final[key] = rec
				}
				slog.Info("duplicate dish, later dump wins",
					slog.String("name", winner.item.Name),
					slog.String("kept", files[winner.file]),
					slog.String("dropped", files[loser.file]),
					slog.Int("dropped_line", loser.line),
				)
				continue
			}
			final[key] = rec
		}
	}

	keys := make([]string, 0, len(final))
	for key := range final {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.items = make([]menu.MenuItem, len(keys))
	for i, key := range keys {
		s.items[i] = final[key].item
	}
	return s
}

func dishKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// decodeName extracts only the name field of a dump line.
func decodeName(line []byte) (string, error) {
	var name string
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "name" {
			return d.Skip()
		}
		v, err := d.Str()
		name = v
		return err
	})
	return name, err
}

// decodeItem decodes a full dump line. Price may be a number or a numeric
// string; available defaults to true.
func decodeItem(line []byte) (menu.MenuItem, error) {
	item := menu.MenuItem{Available: true}
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			item.Name, err = d.Str()
		case "description":
			item.Description, err = d.Str()
		case "image":
			item.Image, err = d.Str()
		case "category":
			item.Category, err = d.Str()
		case "available":
			item.Available, err = d.Bool()
		case "price":
			item.Price, err = decodePrice(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return menu.MenuItem{}, err
	}

	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return menu.MenuItem{}, errors.New("name is required")
	case !item.Price.IsPositive():
		return menu.MenuItem{}, errors.Errorf("price %s must be positive", item.Price)
	}
	item.Price = item.Price.Round(2)
	return item, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line with its 1-based number.
func streamGzFile(ctx context.Context, path string, fn func(lineNo int, line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		fn(lineNo, line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeMenu upserts all merged dishes by name.
func writeMenu(ctx context.Context, repo *postgres.MenuRepository, items []menu.MenuItem) error {
	slog.Info("writing menu to database", slog.Int("count", len(items)))

	for i := range items {
		if err := repo.UpsertByName(ctx, &items[i]); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", items[i].Name)
		}

		if (i+1)%100 == 0 || i+1 == len(items) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(items)))
		}
	}

	return nil
}
