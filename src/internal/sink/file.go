package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/format"

	"github.com/klauspost/compress/gzip"
)

// FileSink appends lines to <dir>/<name>.<ext> and, with monthly archiving,
// moves the file aside when a write lands in a new calendar month
type FileSink struct {
	*worker
	file *fileDestination
}

type fileDestination struct {
	dir            string
	base           string
	ext            string
	archiveMonthly bool
	compress       bool
	formatter      format.Formatter
	deps           Deps
	now            func() time.Time

	// Guards rotation against writes and syncs
	mu        sync.Mutex
	f         *os.File
	bw        *bufio.Writer
	size      int64
	lastWrite time.Time
	archives  int
}

func NewFileSink(opts *config.FileSinkOptions, formatter format.Formatter, deps Deps) (*FileSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("file sink options cannot be nil")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = core.DefaultLogName
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, &config.ConfigError{Key: "logging.file.name", Reason: fmt.Sprintf("log name %q must not contain path separators", name)}
	}
	dir := opts.Directory
	if dir == "" {
		dir = "."
	}

	base, ext := SplitLogName(name)
	dst := &fileDestination{
		dir:            dir,
		base:           base,
		ext:            ext,
		archiveMonthly: opts.ArchiveMonthly,
		compress:       opts.Compress,
		formatter:      formatter,
		deps:           deps,
		now:            time.Now,
	}
	return &FileSink{
		worker: newWorker(string(config.SinkFile), dst, opts.BufferSize, deps),
		file:   dst,
	}, nil
}

// SplitLogName separates a log name into base and extension, defaulting the
// extension to "log"
func SplitLogName(name string) (base, ext string) {
	ext = filepath.Ext(name)
	if ext == "" || ext == "." {
		return strings.TrimSuffix(name, "."), core.DefaultLogExtension
	}
	return strings.TrimSuffix(name, ext), strings.TrimPrefix(ext, ".")
}

// Path is the active log file
func (s *FileSink) Path() string {
	return s.file.path()
}

func (d *fileDestination) path() string {
	return filepath.Join(d.dir, d.base+"."+d.ext)
}

func (d *fileDestination) archivePath(date time.Time, n int) string {
	name := d.base + "." + date.Format(core.ArchiveDateFormat)
	if n > 0 {
		name += fmt.Sprintf(".%d", n)
	}
	return filepath.Join(d.dir, name+"."+d.ext)
}

func (d *fileDestination) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openLocked()
}

func (d *fileDestination) openLocked() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(d.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	d.f = f
	d.bw = bufio.NewWriter(f)
	d.size = info.Size()
	d.lastWrite = info.ModTime()
	return nil
}

func (d *fileDestination) write(entry core.Entry) error {
	formatted, err := d.formatter.Format(entry)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if err := d.rotateIfDueLocked(now); err != nil {
		d.deps.Diag.Report("file_sink", ioError("file", "rotate", err), "path", d.path())
	}
	if d.bw == nil {
		// A failed open or rotation left no file; try again on every write
		if err := d.openLocked(); err != nil {
			return fmt.Errorf("log file %s is not open: %w", d.path(), err)
		}
	}

	n, err := d.bw.Write(formatted)
	d.size += int64(n)
	if err != nil {
		return err
	}
	d.lastWrite = now
	return nil
}

// sync flushes buffered lines to disk. A month boundary passed since the
// last write archives the file here too, so idle months still roll over.
func (d *fileDestination) sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bw == nil {
		return nil
	}
	if err := d.bw.Flush(); err != nil {
		return err
	}
	if err := d.f.Sync(); err != nil {
		return err
	}
	return d.rotateIfDueLocked(d.now())
}

func (d *fileDestination) rotateIfDueLocked(now time.Time) error {
	if !d.archiveMonthly || d.f == nil {
		return nil
	}
	if d.size == 0 && d.bw.Buffered() == 0 {
		return nil
	}
	if sameMonth(now, d.lastWrite) {
		return nil
	}
	return d.rotateLocked()
}

func sameMonth(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// rotateLocked moves the current file to its dated archive name and opens a
// fresh one. If the fresh file cannot be opened, the next write retries.
func (d *fileDestination) rotateLocked() error {
	if err := d.bw.Flush(); err != nil {
		return err
	}
	if err := d.f.Close(); err != nil {
		return err
	}
	d.f, d.bw = nil, nil

	archive := d.freeArchivePath(d.lastWrite.Local())
	renameErr := os.Rename(d.path(), archive)

	if err := d.openLocked(); err != nil {
		return err
	}
	if renameErr != nil {
		return renameErr
	}

	d.archives++
	d.deps.Metrics.Archived()
	d.deps.logger().Info("msg", "Log file archived",
		"component", "file_sink",
		"archive", archive)

	if d.compress {
		if err := compressFile(archive); err != nil {
			return fmt.Errorf("failed to compress %s: %w", archive, err)
		}
	}
	return nil
}

// freeArchivePath picks the first archive name not taken by an earlier
// archive, compressed or not
func (d *fileDestination) freeArchivePath(date time.Time) string {
	for n := 0; ; n++ {
		candidate := d.archivePath(date, n)
		if !exists(candidate) && !exists(candidate+".gz") {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// compressFile gzips path to path.gz and removes the original
func compressFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dst.Close()
			os.Remove(path + ".gz")
		}
	}()

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = dst.Close(); err != nil {
		return err
	}

	src.Close()
	return os.Remove(path)
}

func (d *fileDestination) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	flushErr := d.bw.Flush()
	closeErr := d.f.Close()
	d.f, d.bw = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (d *fileDestination) details() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"path":            d.path(),
		"size":            d.size,
		"archive_monthly": d.archiveMonthly,
		"archives":        d.archives,
	}
}
