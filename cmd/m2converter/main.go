// Copyright the m2converter authors, 2026. All rights reserved.

// Package main is the entry point for the m2converter CLI, which turns
// imaging mass spectrometry files (imzML) into per-m/z ion images and
// numpy array exports.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the m2converter CLI.
var rootCmd = &cobra.Command{
	Use:   "m2converter",
	Short: "Convert imzML imaging mass spectrometry data to NRRD and numpy files",
	Long: `m2converter reads imzML files and extracts one ion image per target m/z
value, using the file's own centroid list or an explicit one. Results are
written as compressed NRRD images, numpy arrays, or both.

Use convert to run a conversion, info to inspect a file, and runs to list
past conversions recorded in the catalog.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./m2converter.yaml or ~/.config/m2converter/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("m2converter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "m2converter"))
		}
	}

	viper.SetEnvPrefix("M2CONVERTER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
