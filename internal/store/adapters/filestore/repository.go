package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
)

const (
	filePerm    = 0o644
	dirPerm     = 0o755
	maxLineSize = 4 << 20
)

// Paths names the three data files.
type Paths struct {
	Products  string
	Customers string
	Sales     string
}

// DefaultPaths places the data files in dir with their conventional names.
func DefaultPaths(dir string) Paths {
	return Paths{
		Products:  filepath.Join(dir, "productos.txt"),
		Customers: filepath.Join(dir, "clientes.txt"),
		Sales:     filepath.Join(dir, "ventas.txt"),
	}
}

// Repository keeps state in line-delimited JSON files: one object per line.
// Products and customers are rewritten whole through a temporary file and a
// rename; sales are only ever appended.
type Repository struct {
	paths  Paths
	logger *slog.Logger
}

// NewRepository creates the directories holding the data files.
func NewRepository(paths Paths, logger *slog.Logger) (*Repository, error) {
	for _, path := range []string{paths.Products, paths.Customers, paths.Sales} {
		if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
			return nil, fmt.Errorf("create data directory for %s: %w", path, err)
		}
	}
	return &Repository{paths: paths, logger: logger}, nil
}

// Load reads products and customers. Missing files load as empty; blank lines
// are ignored; lines that fail to decode or validate are logged and counted in
// Snapshot.Skipped.
func (r *Repository) Load(ctx context.Context) (ports.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ports.Snapshot{}, err
	}

	products, skippedProducts, err := readLines(ctx, r.logger, r.paths.Products, validProduct)
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("load products: %w", err)
	}

	customers, skippedCustomers, err := readLines(ctx, r.logger, r.paths.Customers, validCustomer)
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("load customers: %w", err)
	}

	return ports.Snapshot{
		Products:  products,
		Customers: customers,
		Skipped:   skippedProducts + skippedCustomers,
	}, nil
}

func (r *Repository) SaveProducts(ctx context.Context, products []domain.ProductInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeLines(r.paths.Products, products); err != nil {
		return fmt.Errorf("write products: %w", err)
	}
	return nil
}

func (r *Repository) SaveCustomers(ctx context.Context, customers []domain.CustomerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeLines(r.paths.Customers, customers); err != nil {
		return fmt.Errorf("write customers: %w", err)
	}
	return nil
}

// AppendSale adds one line to the sales ledger.
func (r *Repository) AppendSale(ctx context.Context, sale domain.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := encodeLine(sale)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}

	f, err := os.OpenFile(r.paths.Sales, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("open sales ledger: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append sale: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync sales ledger: %w", err)
	}
	return f.Close()
}

// Sales reads the ledger back in append order.
func (r *Repository) Sales(ctx context.Context) ([]domain.Sale, error) {
	sales, _, err := readLines[domain.Sale](ctx, r.logger, r.paths.Sales, nil)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	return sales, nil
}

func readLines[T any](ctx context.Context, logger *slog.Logger, path string, validate func(T) error) ([]T, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	records := []T{}
	skipped := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec T
		err := json.Unmarshal(line, &rec)
		if err == nil && validate != nil {
			err = validate(rec)
		}
		if err != nil {
			skipped++
			logger.WarnContext(ctx, "skipping malformed record",
				"file", path,
				"line", lineNo,
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	return records, skipped, nil
}

func writeLines[T any](path string, records []T) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		line, err := encodeLine(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// encodeLine marshals v as a single JSON line without HTML escaping.
func encodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func validProduct(p domain.ProductInfo) error {
	if p.ID <= 0 {
		return fmt.Errorf("invalid id_producto %d", p.ID)
	}
	return domain.ValidateProduct(p.Name, p.Price, p.Stock)
}

func validCustomer(c domain.CustomerRecord) error {
	if c.ID <= 0 {
		return fmt.Errorf("invalid id_cliente %d", c.ID)
	}
	for _, line := range c.Cart {
		if line.Quantity <= 0 {
			return fmt.Errorf("invalid cantidad %d for producto %d", line.Quantity, line.ProductID)
		}
	}
	return domain.ValidateCustomer(c.Name, c.Email)
}
