// Package artifacts persists the per-channel trial average next to the
// service as a MAT file named after the channel.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/okian/nsted/internal/adapters/matfile"
	"github.com/okian/nsted/pkg/metrics"
)

const (
	defaultLockTimeout = 10 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
	lockFileName       = ".artifacts.lock"
)

// Writer saves channel averages under a fixed directory. Saves from any
// number of goroutines or processes are serialized by an advisory file lock
// and each file is replaced atomically.
type Writer struct {
	dir         string
	lockTimeout time.Duration
	compress    bool
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:         dir,
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the artifact directory.
func (w *Writer) Dir() string { return w.dir }

// VariableName is the MAT variable holding the average of channel.
func VariableName(channel int) string {
	return fmt.Sprintf("channel_%d_average", channel)
}

// Path is the file written for channel.
func (w *Writer) Path(channel int) string {
	return filepath.Join(w.dir, VariableName(channel)+".mat")
}

// SaveChannelAverage writes avg as a 1xN double array and returns the path.
// An existing file for the same channel is replaced.
func (w *Writer) SaveChannelAverage(ctx context.Context, channel int, avg []float64) (string, error) {
	path, err := w.save(ctx, channel, avg)
	if err != nil {
		metrics.RecordArtifactWriteError()
		return "", err
	}
	metrics.RecordArtifactWrite()
	return path, nil
}

func (w *Writer) save(ctx context.Context, channel int, avg []float64) (string, error) {
	if len(avg) == 0 {
		return "", ErrEmptyAverage
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	opts := []matfile.WriteOption{
		matfile.WithDescription(fmt.Sprintf("nsted channel %d trial average, created %s", channel, time.Now().UTC().Format(time.RFC3339))),
	}
	if w.compress {
		opts = append(opts, matfile.WithCompression())
	}
	data, err := matfile.Encode([]*matfile.Variable{matfile.RowVector(VariableName(channel), avg)}, opts...)
	if err != nil {
		return "", fmt.Errorf("encode average: %w", err)
	}

	lock := flock.New(filepath.Join(w.dir, lockFileName))
	lctx, cancel := context.WithTimeout(ctx, w.lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(lctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrLockTimeout, w.lockTimeout)
		}
		return "", fmt.Errorf("acquire artifact lock: %w", err)
	}
	if !ok {
		return "", ErrLockTimeout
	}
	defer func() { _ = lock.Unlock() }()

	path := w.Path(channel)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadChannelAverage reads back a saved average.
func (w *Writer) LoadChannelAverage(channel int) ([]float64, error) {
	fh, err := os.Open(w.Path(channel))
	if err != nil {
		return nil, fmt.Errorf("open average: %w", err)
	}
	defer fh.Close()

	v, err := matfile.ReadVariable(fh, VariableName(channel))
	if err != nil {
		return nil, err
	}
	return v.Data, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "average-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
