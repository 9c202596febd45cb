package transform

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/util"
)

const svgType = "image/svg+xml"

// Images re-encodes JPEG and PNG files, minifies SVG and copies everything
// else, keeping each file's path relative to Base. An optimised file is only
// used when it is smaller than the original.
type Images struct {
	Root           string
	Sources        []string
	Base           string // stripped from source paths
	Dest           string // absolute output directory
	JPEGQuality    int
	SkipLargerThan int64 // 0 = no limit
	Concurrency    int

	minifier *minify.M
}

// NewImages builds the images task from config.
func NewImages(cfg models.Config) (*Images, error) {
	limit, err := util.ParseSize(cfg.Images.SkipLargerThan)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	return &Images{
		Root:           cfg.SourceDir,
		Sources:        cfg.Images.Sources,
		Base:           cfg.Images.Base,
		Dest:           filepath.Join(cfg.OutputDir, filepath.FromSlash(cfg.Images.Output)),
		JPEGQuality:    cfg.Images.JPEGQuality,
		SkipLargerThan: limit,
		Concurrency:    cfg.Images.Concurrency,
	}, nil
}

func (im *Images) Name() string { return "images" }

func (im *Images) Run(ctx context.Context) error {
	files, err := expand(im.Name(), im.Root, im.Sources)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Info("no images to optimise", "task", im.Name(), "patterns", im.Sources)
		return nil
	}

	if im.minifier == nil {
		im.minifier = minify.New()
		im.minifier.AddFunc(svgType, svg.Minify)
	}

	var before, after atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	if im.Concurrency > 0 {
		g.SetLimit(im.Concurrency)
	}
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, out, err := im.optimize(f)
			if err != nil {
				return err
			}
			before.Add(in)
			after.Add(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("optimised images", "task", im.Name(), "files", len(files),
		"bytes_before", before.Load(), "bytes_after", after.Load())
	return nil
}

// optimize writes one image and returns its input and output sizes.
func (im *Images) optimize(rel string) (int64, int64, error) {
	data, err := readSource(im.Name(), im.Root, rel)
	if err != nil {
		return 0, 0, err
	}

	out := data
	if im.SkipLargerThan == 0 || int64(len(data)) <= im.SkipLargerThan {
		optimized, err := im.encode(rel, data)
		if err != nil {
			return 0, 0, models.NewTaskError(im.Name(), models.ErrSyntax, fmt.Errorf("%s: %w", rel, err))
		}
		if optimized != nil && len(optimized) < len(data) {
			out = optimized
		}
	}

	dst := filepath.Join(im.Dest, filepath.FromSlash(im.relative(rel)))
	if err := writeOutput(im.Name(), dst, out); err != nil {
		return 0, 0, err
	}

	slog.Debug("optimised image", "task", im.Name(), "file", rel, "before", len(data), "after", len(out))
	return int64(len(data)), int64(len(out)), nil
}

// encode returns the re-encoded bytes, or nil for formats that are copied.
func (im *Images) encode(rel string, data []byte) ([]byte, error) {
	var buf bytes.Buffer

	switch strings.ToLower(path.Ext(rel)) {
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: im.JPEGQuality}); err != nil {
			return nil, err
		}
	case ".png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case ".svg":
		return im.minifier.Bytes(svgType, data)
	default:
		return nil, nil
	}

	return buf.Bytes(), nil
}

func (im *Images) relative(rel string) string {
	if im.Base == "" {
		return rel
	}
	if trimmed, ok := strings.CutPrefix(rel, strings.TrimSuffix(im.Base, "/")+"/"); ok {
		return trimmed
	}
	return rel
}
