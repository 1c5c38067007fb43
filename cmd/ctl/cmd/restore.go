package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jpfielding/dejpeg.go/pkg/compress/jpegdct"
	"github.com/jpfielding/dejpeg.go/pkg/logging"
	"github.com/jpfielding/dejpeg.go/pkg/progress"
	"github.com/jpfielding/dejpeg.go/pkg/restore"
	"github.com/jpfielding/dejpeg.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewRestoreCmd creates the restore cobra command
func NewRestoreCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <in.jpg>",
		Short: "reconstruct a JPEG image",
		Long: "Reconstructs every component of a JPEG image by minimizing TV and TV2 within the\n" +
			"quantization intervals, then writes PNG, lossless JPEG (gray) or zstd float planes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := restoreOptions(cmd)
			if err != nil {
				return err
			}
			in := args[0]
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = strings.TrimSuffix(in, filepath.Ext(in)) + ".png"
			}
			if format, _ := cmd.Flags().GetString("format"); format == "" {
				opts.Format = restore.FormatFromPath(out)
			} else {
				opts.Format = format
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			quiet, _ := cmd.Flags().GetBool("quiet")
			csvPath, _ := cmd.Flags().GetString("csv-log")
			return runRestore(ctx, cmd, in, out, csvPath, opts, force, quiet)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "", "output path, - for stdout (default <in>.png)")
	pf.StringP("weight", "w", "0.3", "TV2 weight, one value or one per component (0.3,0.1,0.1)")
	pf.StringP("iterations", "i", "50", "iterations, one value or one per component")
	pf.Int("png-bits", 16, "bits per PNG channel (8|16)")
	pf.String("format", "", "output format (png|ljpeg|raw), default from the output extension")
	pf.String("csv-log", "", "write per iteration objective values to this CSV file")
	pf.IntP("workers", "t", runtime.GOMAXPROCS(0), "goroutines per component solve")
	pf.Int("parallel", 3, "components solved at once")
	pf.String("kernel", "", "TV kernel (row|scalar), default depends on the build")
	pf.BoolP("quiet", "q", false, "no progress bar")
	pf.BoolP("force", "f", false, "overwrite the output file")
	return cmd
}

func restoreOptions(cmd *cobra.Command) (restore.Options, error) {
	opts := restore.DefaultOptions()
	var err error
	weights, _ := cmd.Flags().GetString("weight")
	if opts.Weights, err = restore.ParseWeights(weights); err != nil {
		return opts, err
	}
	iterations, _ := cmd.Flags().GetString("iterations")
	if opts.Iterations, err = restore.ParseIterations(iterations); err != nil {
		return opts, err
	}
	opts.PNGBits, _ = cmd.Flags().GetInt("png-bits")
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.Parallel, _ = cmd.Flags().GetInt("parallel")
	opts.Kernel, _ = cmd.Flags().GetString("kernel")
	return opts, nil
}

func runRestore(ctx context.Context, cmd *cobra.Command, in, out, csvPath string, opts restore.Options, force, quiet bool) error {
	if out != "-" && !force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s exists, use --force to overwrite", out)
		}
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	contentID, err := util.ContentUUID(bytes.NewReader(data))
	if err != nil {
		return err
	}
	ctx = logging.AppendCtx(ctx,
		slog.String("run", util.NewRunID()),
		slog.String("input", contentID))

	img, err := jpegdct.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	slog.InfoContext(ctx, "restore: decoded coefficients",
		slog.String("path", in),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
		slog.Int("components", len(img.Components)),
		slog.Bool("progressive", img.Progressive),
		slog.String("options", util.HashUUID(opts)))

	var sinks restore.Sinks
	if csvPath != "" {
		f, err := createOutput(csvPath, force)
		if err != nil {
			return err
		}
		defer f.Close()
		log := restore.NewCSVLog(f)
		defer func() {
			if err := log.Flush(); err != nil {
				slog.ErrorContext(ctx, "restore: csv log", slog.Any("error", err))
			}
		}()
		sinks.Metrics = log.Sink
	}
	if !quiet {
		bar := progress.NewBar(cmd.ErrOrStderr(), restore.TotalIterations(img, opts), filepath.Base(in))
		defer bar.Finish()
		sinks.Progress = bar
	}

	start := time.Now()
	res, err := restore.Run(ctx, img, opts, sinks)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "restore: solved", slog.Duration("elapsed", time.Since(start)))

	write := func(w io.Writer) error { return restore.Write(w, res, opts) }
	if out == "-" {
		err = write(cmd.OutOrStdout())
	} else {
		err = writeFile(out, force, write)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	slog.InfoContext(ctx, "restore: wrote output", slog.String("path", out), slog.String("format", opts.Format))
	return nil
}

func writeFile(path string, force bool, write func(io.Writer) error) error {
	f, err := createOutput(path, force)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func createOutput(path string, force bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%s exists, use --force to overwrite", path)
	}
	return f, err
}
