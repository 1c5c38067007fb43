package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/jpfielding/dejpeg.go/pkg/compress/jpegdct"
	"github.com/jpfielding/dejpeg.go/pkg/compress/jpegli"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect cobra command
func NewInspectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <in.jpg>",
		Short: "print the frame, components and quantization tables of a JPEG",
		Long:  "Parses a JPEG down to its quantized coefficients and prints the frame header, component geometry and quantization tables. Lossless JPEG (such as restore's .ljpg output) is decoded and summarized instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			img, err := jpegdct.Decode(bytes.NewReader(data))
			if errors.Is(err, jpegdct.ErrUnsupported) {
				if limg, lerr := jpegli.Decode(bytes.NewReader(data)); lerr == nil {
					printLossless(cmd.OutOrStdout(), limg)
					return nil
				}
			}
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			tables, _ := cmd.Flags().GetBool("tables")
			printImage(cmd.OutOrStdout(), img, tables)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.Bool("tables", true, "print quantization tables")
	return cmd
}

func printImage(w io.Writer, img *jpegdct.Image, tables bool) {
	mode := "sequential"
	if img.Progressive {
		mode = "progressive"
	}
	fmt.Fprintln(w, "=== Frame ===")
	fmt.Fprintf(w, "Size: %dx%d\n", img.Width, img.Height)
	fmt.Fprintf(w, "Precision: %d\n", img.Precision)
	fmt.Fprintf(w, "Mode: %s (%d scans)\n", mode, img.Scans)
	fmt.Fprintf(w, "JFIF: %t Adobe transform: %d RGB: %t\n", img.JFIF, img.AdobeTransform, img.IsRGB())
	if img.RestartInterval > 0 {
		fmt.Fprintf(w, "Restart interval: %d\n", img.RestartInterval)
	}

	fmt.Fprintln(w, "\n=== Components ===")
	for i, c := range img.Components {
		fmt.Fprintf(w, "[%d] id=%d sampling=%dx%d size=%dx%d blocks=%dx%d quant=%d\n",
			i, c.ID, c.H, c.V, c.Width, c.Height, c.BlocksW, c.BlocksH, c.QuantIndex)
	}
	if !tables {
		return
	}

	fmt.Fprintln(w, "\n=== Quantization ===")
	for i, c := range img.Components {
		fmt.Fprintf(w, "[%d] table %d\n", i, c.QuantIndex)
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				fmt.Fprintf(w, "%4d", c.Quant[y*8+x])
			}
			fmt.Fprintln(w)
		}
	}
}

// printLossless summarizes a frame read back by the lossless decoder.
func printLossless(w io.Writer, img image.Image) {
	bits := 8
	if _, ok := img.(*image.Gray16); ok {
		bits = 16
	}
	b := img.Bounds()
	fmt.Fprintln(w, "=== Frame ===")
	fmt.Fprintf(w, "Size: %dx%d\n", b.Dx(), b.Dy())
	fmt.Fprintln(w, "Mode: lossless")
	fmt.Fprintf(w, "Samples: %d-bit gray\n", bits)
}
