package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/face-register/internal/facedetect/cascade"
	"github.com/example/face-register/internal/grpcclient"
	"github.com/example/face-register/internal/imageprocessor"
)

type cropOptions struct {
	OutDir  string
	Jobs    int
	DataURL bool
}

func newCropCmd(opts *Options, logger func() *zap.Logger) *cobra.Command {
	cropOpts := &cropOptions{}

	cmd := &cobra.Command{
		Use:   "crop <file>...",
		Short: "Crop the largest face in each file to a square JPEG portrait",
		Long: `Each input is either an image file (JPEG, PNG, GIF, BMP, WebP) or a text
file holding a data URL. Outputs are written next to the input, or into
--out, as <name>.portrait.jpg or <name>.portrait.txt with --data-url.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cropOpts.Jobs <= 0 {
				return errors.New("--jobs must be positive")
			}

			detector, closeDetector, err := openDetector(cmd.Context(), opts, cropOpts.Jobs, logger())
			if err != nil {
				return err
			}
			defer closeDetector()

			processor := imageprocessor.NewProcessor(detector)
			failed, err := cropAll(cmd.Context(), processor, args, cropOpts, logger())
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cropOpts.OutDir, "out", "o", "", "Directory for outputs (default: next to each input)")
	cmd.Flags().IntVarP(&cropOpts.Jobs, "jobs", "j", 4, "Number of files processed in parallel")
	cmd.Flags().BoolVar(&cropOpts.DataURL, "data-url", false, "Write the data URL text instead of JPEG bytes")
	return cmd
}

func openDetector(ctx context.Context, opts *Options, size int, logger *zap.Logger) (imageprocessor.Detector, func(), error) {
	if opts.DetectorAddr != "" {
		detector, conn, err := grpcclient.DialFaceDetector(ctx, opts.DetectorAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		return detector, func() { conn.Close() }, nil
	}

	pool, err := cascade.NewPool(opts.CascadePath, size)
	if err != nil {
		return nil, nil, err
	}
	return pool, func() { _ = pool.Close() }, nil
}

// cropAll processes paths with at most opts.Jobs in flight. Per-file failures
// are logged and counted; only cancellation aborts the batch.
func cropAll(ctx context.Context, processor *imageprocessor.Processor, paths []string, opts *cropOptions, logger *zap.Logger) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)

	var failed int32
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := cropFile(gctx, processor, path, opts)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				logger.Error("failed to crop", zap.String("file", path), zap.Error(err))
				return nil
			}
			logger.Info("portrait written", zap.String("file", path), zap.String("output", out))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(failed), err
	}
	return int(failed), nil
}

func cropFile(ctx context.Context, processor *imageprocessor.Processor, path string, opts *cropOptions) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	processed, err := processor.Process(ctx, envelope(raw))
	if err != nil {
		return "", err
	}

	dir := opts.OutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if opts.DataURL {
		out := filepath.Join(dir, base+".portrait.txt")
		return out, os.WriteFile(out, []byte(processed), 0o644)
	}

	jpeg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(processed, imageprocessor.EncodedPrefix))
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, base+".portrait.jpg")
	return out, os.WriteFile(out, jpeg, 0o644)
}

// envelope treats text starting with "data:" as an existing data URL and wraps
// anything else as raw image bytes.
func envelope(raw []byte) string {
	if trimmed := bytes.TrimSpace(raw); bytes.HasPrefix(trimmed, []byte("data:")) {
		return string(trimmed)
	}
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(raw)
}
