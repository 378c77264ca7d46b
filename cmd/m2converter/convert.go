package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/m2aia/m2converter/internal/catalog"
	"github.com/m2aia/m2converter/internal/convert"
	"github.com/m2aia/m2converter/internal/imzml"
	"github.com/m2aia/m2converter/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.imzML>",
	Short: "Convert imzML peaks to NRRD files and numpy arrays",
	Long: `Convert extracts one ion image per target m/z value from an imzML file.
Targets come from --centroids or, for centroid files, from the file's own
peak list. Individual target failures are reported and skipped; the run
still writes every output it could produce.

Examples:
  # Convert using the file's own centroids
  m2converter convert input.imzML --save-nrrd

  # Convert specific m/z values
  m2converter convert input.imzML --centroids 100.5,200.3,300.7 --save-nrrd

  # Save the 3D [height, width, targets] array and its flattened 2D form
  m2converter convert input.imzML --save-npy-spatial --save-npy-list`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Float64Slice("centroids", nil, "explicit target m/z values (default: the file's own centroids)")
	convertCmd.Flags().String("output-dir", "", "output directory (default: the input file's directory)")
	convertCmd.Flags().Float64("tolerance", types.DefaultTolerancePPM, "m/z tolerance in ppm")
	convertCmd.Flags().Bool("save-nrrd", false, "save one NRRD file per m/z value")
	convertCmd.Flags().Bool("save-npy-spatial", false, "save the 3D [height, width, targets] numpy array")
	convertCmd.Flags().Bool("save-npy-list", false, "save the 2D [pixels, targets] numpy array")
	convertCmd.Flags().String("npy-output", "", "base filename for array outputs (default: <input stem>_data)")
	convertCmd.Flags().String("catalog", "", "record the run in this SQLite catalog database")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
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

	centroids, _ := cmd.Flags().GetFloat64Slice("centroids")
	saveNRRD, _ := cmd.Flags().GetBool("save-nrrd")
	saveSpatial, _ := cmd.Flags().GetBool("save-npy-spatial")
	saveList, _ := cmd.Flags().GetBool("save-npy-list")
	baseName, _ := cmd.Flags().GetString("npy-output")

	tolerance, _ := cmd.Flags().GetFloat64("tolerance")
	if !cmd.Flags().Changed("tolerance") && viper.IsSet("tolerance") {
		tolerance = viper.GetFloat64("tolerance")
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	catalogPath, _ := cmd.Flags().GetString("catalog")
	if catalogPath == "" {
		catalogPath = viper.GetString("catalog")
	}

	started := time.Now()

	fmt.Printf("Loading imzML file: %s\n", input)
	src, err := imzml.Open(input)
	if err != nil {
		return fmt.Errorf("loading imzML file: %w", err)
	}
	defer src.Close()

	fmt.Println("Loaded imzML file successfully")
	fmt.Printf("Spectrum type: %s\n", src.SpectrumType())

	opts := types.ConvertOptions{
		InputPath:    input,
		OutputDir:    outputDir,
		Centroids:    centroids,
		TolerancePPM: tolerance,
		SaveNRRD:     saveNRRD,
		SaveSpatial:  saveSpatial,
		SaveList:     saveList,
		BaseName:     baseName,
	}

	result, err := convert.Convert(src, opts, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}

	if catalogPath != "" {
		if err := recordRun(catalogPath, opts, result, started); err != nil {
			// Catalog bookkeeping never fails the conversion itself.
			fmt.Fprintf(os.Stderr, "Warning: could not record run in catalog: %v\n", err)
		}
	}
	return nil
}

// recordRun stores the completed conversion in the catalog database.
func recordRun(path string, opts types.ConvertOptions, result *types.ConvertResult, started time.Time) error {
	store, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	outputs := make([]string, 0, len(result.NRRDFiles)+4)
	outputs = append(outputs, result.NRRDFiles...)
	for _, p := range []string{result.SpatialPath, result.ListPath, result.MetadataPath, result.ManifestPath} {
		if p != "" {
			outputs = append(outputs, p)
		}
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.InputPath)
	}

	_, err = store.Record(context.Background(), catalog.Run{
		SourceFile:   opts.InputPath,
		OutputDir:    outDir,
		TolerancePPM: result.TolerancePPM,
		Targets:      len(result.Targets),
		Processed:    result.Processed,
		Failed:       result.Failed,
		Outputs:      outputs,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})
	return err
}
