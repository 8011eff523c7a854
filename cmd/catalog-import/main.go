package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/quickcart/internal/domain/product"
	"github.com/xenking/quickcart/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineSize   = 1 << 20
)

// catalogStore is the subset of the product repository the import needs.
type catalogStore interface {
	product.Writer
	List(ctx context.Context) ([]product.Product, error)
}

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		prune       bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz product feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 8, "concurrent upserts")
	flag.BoolVar(&prune, "prune", false, "mark products missing from the feeds as unavailable")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, workers, prune); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, workers int, prune bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("reading feeds", slog.Int("files", len(files)))

	feeds, err := readFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read feeds")
	}
	products, seen := mergeFeeds(feeds)

	slog.Info("products to import", slog.Int("count", len(products)))

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)
	if err := writeProducts(ctx, repo, products, workers); err != nil {
		return errors.Wrap(err, "write products")
	}

	if prune {
		if err := pruneMissing(ctx, repo, seen); err != nil {
			return errors.Wrap(err, "prune products")
		}
	}

	return nil
}

// readFeeds decodes every file concurrently. The result keeps the file order.
func readFeeds(ctx context.Context, files []string) ([][]product.Product, error) {
	feeds := make([][]product.Product, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var out []product.Product
			if err := streamGzFile(ctx, f, func(line []byte) error {
				p, err := decodeProduct(line)
				if err != nil {
					return err
				}
				out = append(out, p)
				if len(out)%progressEvery == 0 {
					slog.Info("read progress", slog.String("file", f), slog.Int("products", len(out)))
				}
				return nil
			}); err != nil {
				return err
			}

			slog.Info("feed read", slog.String("file", f), slog.Int("products", len(out)))
			feeds[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

// mergeFeeds deduplicates products by id, later feeds overriding earlier
// ones. The returned filter holds every imported id.
func mergeFeeds(feeds [][]product.Product) ([]product.Product, *bloom.BloomFilter) {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	index := make(map[string]int)
	var out []product.Product
	for _, feed := range feeds {
		for _, p := range feed {
			seen.AddString(p.ID)
			if i, ok := index[p.ID]; ok {
				out[i] = p
				continue
			}
			index[p.ID] = len(out)
			out = append(out, p)
		}
	}
	return out, seen
}

func writeProducts(ctx context.Context, w product.Writer, products []product.Product, workers int) error {
	slog.Info("writing products to database", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, p := range products {
		g.Go(func() error {
			return w.Upsert(ctx, p)
		})
	}
	return g.Wait()
}

// pruneMissing marks stored products absent from the feeds unavailable. A
// bloom false positive leaves a stale product available until the next run.
func pruneMissing(ctx context.Context, repo catalogStore, seen *bloom.BloomFilter) error {
	stored, err := repo.List(ctx)
	if err != nil {
		return err
	}

	var pruned int
	for _, p := range stored {
		if !p.Available || seen.TestString(p.ID) {
			continue
		}
		p.Available = false
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		pruned++
	}

	slog.Info("pruned products", slog.Int("count", pruned))
	return nil
}

// decodeProduct parses one feed line. Prices may be JSON numbers or strings.
func decodeProduct(line []byte) (product.Product, error) {
	p := product.Product{Available: true}
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "image_url":
			p.ImageURL, err = d.Str()
		case "available":
			p.Available, err = d.Bool()
		case "price":
			p.Price, err = decodePrice(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	if p.ID == "" {
		return product.Product{}, errors.New("decode product: missing id")
	}
	return p, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse price %q", raw)
	}
	if v.IsNegative() {
		return decimal.Zero, errors.Errorf("negative price %s", raw)
	}
	return v, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
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
	var lineNo int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return errors.Wrapf(err, "%s:%d", path, lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
