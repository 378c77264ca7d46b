package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/m2aia/m2converter/internal/imzml"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.imzML>",
	Short: "Inspect an imzML file without converting it",
	Long: `Info prints the spectral representation, acquisition geometry, m/z range,
and total-ion-current summary of an imzML file. Useful for checking whether
a file carries its own centroid list before running convert.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file %s does not exist", input)
		}
		return fmt.Errorf("checking input file: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(input), ".imzml") {
		fmt.Fprintln(os.Stderr, "Warning: input file does not have .imzML extension")
	}

	src, err := imzml.Open(input)
	if err != nil {
		return fmt.Errorf("loading imzML file: %w", err)
	}
	defer src.Close()

	width, height := src.Size()
	mode := "processed"
	if src.Continuous() {
		mode = "continuous"
	}

	fmt.Printf("File:           %s\n", input)
	fmt.Printf("Spectrum type:  %s\n", src.SpectrumType())
	fmt.Printf("Binary mode:    %s\n", mode)
	fmt.Printf("Pixel grid:     %d x %d\n", width, height)
	fmt.Printf("Spectra:        %d\n", src.SpectrumCount())

	lo, hi, err := src.MZRange()
	if err != nil {
		return fmt.Errorf("reading m/z range: %w", err)
	}
	fmt.Printf("m/z range:      %.4f - %.4f\n", lo, hi)

	if src.SpectrumType().IsCentroid() {
		axis, err := src.CentroidAxis()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read centroid axis: %v\n", err)
		} else {
			fmt.Printf("Centroids:      %d\n", len(axis))
		}
	}

	tics, err := src.TICs()
	if err != nil {
		return fmt.Errorf("computing total ion currents: %w", err)
	}
	if len(tics) > 0 {
		fmt.Printf("TIC mean:       %.4g\n", stat.Mean(tics, nil))
		fmt.Printf("TIC std dev:    %.4g\n", stat.StdDev(tics, nil))
		fmt.Printf("TIC min/max:    %.4g / %.4g\n", floats.Min(tics), floats.Max(tics))
	}
	return nil
}
