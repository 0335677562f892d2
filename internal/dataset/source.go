package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Source opens a named table for reading.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// FileSource reads tables from the local filesystem. Names are file paths.
type FileSource struct{}

// Open opens the named file.
func (FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// Describe names the source in log lines.
func (FileSource) Describe() string { return "file" }

// Load reads both tables from src and builds the Store. Any failure is
// meant to be fatal to the caller: the dashboard never starts on partial data.
func Load(ctx context.Context, logger *zap.Logger, src Source, salesName, siresName string, outlierQuantile float64) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	sales, err := readTable(ctx, src, salesName, ReadSales)
	if err != nil {
		return nil, err
	}
	sires, err := readTable(ctx, src, siresName, ReadSires)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(sales, sires, outlierQuantile)
	if err != nil {
		return nil, err
	}

	logger.Info("datasets loaded",
		zap.String("op", "dataset.Load"),
		zap.String("source", src.Describe()),
		zap.Int("sales", len(sales)),
		zap.Int("sires", len(sires)),
		zap.Int("distinctSires", len(store.AllSires())),
		zap.Float64("outlierQuantile", store.OutlierQuantile()),
		zap.Float64("outlierThreshold", store.OutlierThreshold()),
		zap.Duration("duration", time.Since(start)),
	)
	return store, nil
}

func readTable[T any](ctx context.Context, src Source, name string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	rows, err := parse(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rows, nil
}
