package imageconv

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"toolbox/internal/fileutil"
	"toolbox/internal/logging"
)

// Format names a target image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatAVIF Format = "avif"
)

// ParseFormat maps a config value onto a Format.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatAVIF:
		return FormatAVIF, nil
	default:
		return "", fmt.Errorf("unsupported target format %q", raw)
	}
}

// Report summarizes one batch. Converted+Failed equals the number of
// candidates examined and each entry in Errors names exactly one file.
type Report struct {
	Converted int      `json:"converted"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Candidate pairs a source file with the path its conversion is written to.
type Candidate struct {
	Source string
	Target string
}

// Progress is delivered to the progress callback after each candidate.
type Progress struct {
	Done  int
	Total int
	File  string
	Err   error
}

// Converter decodes source images and re-encodes them in the target format.
type Converter struct {
	sourceExt   string
	target      Format
	avifQuality int
	avifSpeed   int
	progress    func(Progress)
	logger      *slog.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithSourceExt selects the extension of files to convert (without dot).
func WithSourceExt(ext string) Option {
	return func(c *Converter) {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			c.sourceExt = ext
		}
	}
}

// WithTarget selects the output encoding.
func WithTarget(format Format) Option {
	return func(c *Converter) {
		if format != "" {
			c.target = format
		}
	}
}

// WithAVIF tunes the AVIF encoder (quality 0-100, speed 0-10).
func WithAVIF(quality, speed int) Option {
	return func(c *Converter) {
		c.avifQuality = quality
		c.avifSpeed = speed
	}
}

// WithProgress registers a callback invoked after each batch candidate.
func WithProgress(fn func(Progress)) Option {
	return func(c *Converter) {
		c.progress = fn
	}
}

// WithLogger overrides the logger used for per-file diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Converter for WebP to PNG unless options say otherwise.
func New(opts ...Option) *Converter {
	c := &Converter{
		sourceExt:   "webp",
		target:      FormatPNG,
		avifQuality: 80,
		avifSpeed:   6,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "imageconv")
	return c
}

// ConvertAll converts every matching regular file in dir, in name order.
// Only an unusable dir is returned as an error; per-file failures land in the
// Report. If ctx is canceled mid-batch the remaining candidates are counted as
// failed with the context error.
func (c *Converter) ConvertAll(ctx context.Context, dir string) (Report, error) {
	candidates, err := c.Candidates(dir)
	if err != nil {
		return Report{}, err
	}

	report := Report{Errors: []string{}}
	logger := logging.WithContext(ctx, c.logger)
	sampler := logging.NewProgressSampler(25)
	for i, cand := range candidates {
		name := filepath.Base(cand.Source)
		err := ctx.Err()
		if err == nil {
			err = c.convert(cand)
		}
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
			logger.Debug("image conversion failed", logging.String("file", name), logging.Error(err))
		} else {
			report.Converted++
		}
		if sampler.ShouldLog(i+1, len(candidates)) {
			logger.Info("image batch progress",
				logging.Int("done", i+1),
				logging.Int("total", len(candidates)),
				logging.String(logging.FieldEventType, "batch_progress"),
			)
		}
		if c.progress != nil {
			c.progress(Progress{Done: i + 1, Total: len(candidates), File: name, Err: err})
		}
	}

	logger.Info("image batch finished",
		logging.String("dir", dir),
		logging.Int("converted", report.Converted),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

// Candidates lists the files ConvertAll would process.
func (c *Converter) Candidates(dir string) ([]Candidate, error) {
	paths, err := matchingFiles(dir, c.sourceExt)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(paths))
	for _, path := range paths {
		out = append(out, Candidate{Source: path, Target: c.targetPath(path)})
	}
	return out, nil
}

// ConvertOne converts a single file and returns the written target path.
// Nothing is written unless path is an existing regular file carrying the
// source extension.
func (c *Converter) ConvertOne(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidPath, path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if !fileutil.MatchesExt(path, c.sourceExt) {
		got := fileutil.Ext(path)
		if got == "" {
			got = "none"
		}
		return "", fmt.Errorf("%w: %s: expected .%s, got %s", ErrWrongExtension, filepath.Base(path), c.sourceExt, got)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cand := Candidate{Source: path, Target: c.targetPath(path)}
	if err := c.convert(cand); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	logging.WithContext(ctx, c.logger).Info("image converted",
		logging.String("source", cand.Source),
		logging.String("target", cand.Target),
	)
	return cand.Target, nil
}

// removeFile is swapped in tests.
var removeFile = os.Remove

// DeleteAllMatching removes every regular file in dir whose extension equals
// ext, ignoring case. The first removal failure aborts; files already removed
// stay removed. The count of deleted files is returned in both cases.
func (c *Converter) DeleteAllMatching(ctx context.Context, dir, ext string) (int, error) {
	paths, err := matchingFiles(dir, ext)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := removeFile(path); err != nil {
			return deleted, fmt.Errorf("%w: remove %s: %w", ErrIO, filepath.Base(path), err)
		}
		deleted++
	}
	logging.WithContext(ctx, c.logger).Info("matching files deleted",
		logging.String("dir", dir),
		logging.String("ext", ext),
		logging.Int("deleted", deleted),
	)
	return deleted, nil
}

func (c *Converter) targetPath(source string) string {
	return fileutil.ReplaceExt(source, string(c.target))
}

func (c *Converter) convert(cand Candidate) error {
	img, err := c.decode(cand.Source)
	if err != nil {
		return err
	}
	err = fileutil.WriteAtomic(cand.Target, 0o644, func(w io.Writer) error {
		return c.encode(w, img)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

func (c *Converter) decode(path string) (image.Image, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !matchesSourceFormat(mtype, c.sourceExt) {
		return nil, fmt.Errorf("%w: not a %s image (content is %s)", ErrDecode, c.sourceExt, mtype.String())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

func (c *Converter) encode(w io.Writer, img image.Image) error {
	switch c.target {
	case FormatAVIF:
		return avif.Encode(w, img, avif.Options{
			Quality:           c.avifQuality,
			QualityAlpha:      c.avifQuality,
			Speed:             c.avifSpeed,
			ChromaSubsampling: image.YCbCrSubsampleRatio420,
		})
	case FormatPNG:
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported target format %q", c.target)
	}
}

func matchesSourceFormat(mtype *mimetype.MIME, ext string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.TrimPrefix(m.Extension(), ".") == ext {
			return true
		}
	}
	switch ext {
	case "jpeg", "jpg":
		return mtype.Is("image/jpeg")
	default:
		return mtype.Is("image/" + ext)
	}
}

// matchingFiles lists regular files (symlinks are followed) in dir whose
// extension matches ext. os.ReadDir returns entries sorted by name.
func matchingFiles(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPath, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPath, dir, err)
	}

	var out []string
	for _, entry := range entries {
		if !fileutil.MatchesExt(entry.Name(), ext) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if !isRegular(entry, full) {
			continue
		}
		out = append(out, full)
	}
	return out, nil
}

func isRegular(entry fs.DirEntry, full string) bool {
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(full)
		return err == nil && info.Mode().IsRegular()
	}
	return entry.Type().IsRegular()
}
