package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
)

const (
	lockRetryDelay  = 25 * time.Millisecond
	defaultFileMode = os.FileMode(0o644)
)

// record is one object of the orders file, kept generic so a rewrite
// preserves fields the storefront wrote that Order does not model.
type record map[string]any

// FileStore is the flat-file order store: a JSON array of order objects.
type FileStore struct {
	path string
	lock bool
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithoutLock disables the advisory <path>.lock file around rewrites.
func WithoutLock() FileOption {
	return func(s *FileStore) { s.lock = false }
}

// NewFileStore returns a store reading and writing path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{path: path, lock: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStore) Name() string { return "file" }

// Path returns the orders file location.
func (s *FileStore) Path() string { return s.path }

// ListAll returns every record in file order. A missing file is an empty store.
func (s *FileStore) ListAll(ctx context.Context) ([]Order, error) {
	recs, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toOrder())
	}
	return out, nil
}

// FindByID returns the first record whose canonical id matches.
func (s *FileStore) FindByID(ctx context.Context, id string) (*Order, error) {
	recs, err := s.read()
	if err != nil {
		return nil, err
	}
	idx := indexOf(recs, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	o := recs[idx].toOrder()
	return &o, nil
}

// UpdateStatus rewrites the status field of the matching record.
func (s *FileStore) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	var updated Order
	err := s.mutate(ctx, func(recs []record) ([]record, error) {
		idx := indexOf(recs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		recs[idx]["status"] = string(status)
		updated = recs[idx].toOrder()
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the matching record.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(recs []record) ([]record, error) {
		idx := indexOf(recs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(recs[:idx], recs[idx+1:]...), nil
	})
}

// mutate runs a read-modify-write cycle under the lock file. fn returning an
// error leaves the file untouched.
func (s *FileStore) mutate(ctx context.Context, fn func([]record) ([]record, error)) error {
	if s.lock {
		fl := flock.New(s.path + ".lock")
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		locked, err := fl.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("lock orders file: %w", err)
		}
		if !locked {
			return fmt.Errorf("lock orders file: %w", ctx.Err())
		}
		defer fl.Unlock()
	}

	recs, err := s.read()
	if err != nil {
		return err
	}
	recs, err = fn(recs)
	if err != nil {
		return err
	}
	return s.write(recs)
}

func (s *FileStore) read() ([]record, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var recs []record
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("parse orders file %s: %w", s.path, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parse orders file %s: trailing data", s.path)
	}
	return recs, nil
}

// write replaces the file atomically: temp file in the same directory, then rename.
func (s *FileStore) write(recs []record) error {
	if recs == nil {
		recs = []record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// the rewritten file keeps the original's permissions; other processes append to it
	mode := defaultFileMode
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace orders file: %w", err)
	}
	return nil
}

func indexOf(recs []record, id string) int {
	want := CanonicalID(id)
	for i, r := range recs {
		if CanonicalID(r.text("id")) == want {
			return i
		}
	}
	return -1
}

func (r record) toOrder() Order {
	key := r.text("generatedKey")
	if key == "" {
		key = r.text("key")
	}
	return Order{
		ID:           CanonicalID(r.text("id")),
		CustomerName: r.text("customerName"),
		Phone:        r.text("phone"),
		Address:      r.text("address"),
		ProductName:  r.text("productName"),
		Price:        r.money("price"),
		Shipping:     r.money("shipping"),
		Total:        r.money("total"),
		Quantity:     r.count("quantity"),
		Area:         r.text("area"),
		Status:       ParseStatus(r.text("status")),
		CreatedAt:    r.text("createdAt"),
		GeneratedKey: key,
	}
}

// text renders a field the way it would print: strings as is, numbers in
// their source form, null and absent as "".
func (r record) text(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r record) money(field string) decimal.Decimal {
	s := strings.TrimSpace(r.text(field))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r record) count(field string) int {
	d := r.money(field)
	return int(d.IntPart())
}
