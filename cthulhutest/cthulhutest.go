// cthulhutest runs the Cthulhu Scheme conformance tests against a runtime
// image on an emulated 65C02 and prints a summary of what failed.
//
// Every flag can also be set in cthulhutest.yaml (in the current directory
// or the one named by --config) or as an environment variable prefixed with
// CTHULHUTEST_ (which may also come from a .env file). Settings without a
// flag (prompt, banner, markers, test file syntax) are only available that
// way.
//
// Several tests are given comma separated (-t main,lists) or by repeating
// the flag (-t main -t lists). A space separated list is not accepted.
//
// The exit status is 0 for any run that completes, whatever the results,
// and 1 if the run couldn't be set up.
package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmchacon/cthulhutest/harness"
)

func main() {
	if err := command().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func command() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "cthulhutest",
		Short:         "Run the Cthulhu Scheme tests on an emulated 65C02",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config(v, cmd)
			if err != nil {
				return err
			}
			_, err = harness.Run(cfg, os.Stdout)
			return err
		},
	}

	def := harness.DefaultConfig()
	f := cmd.Flags()
	f.BoolP("beep", "b", def.Beep, "Ring the terminal bell when done")
	f.BoolP("mute", "m", def.Mute, "Don't echo the runtime's output to the console")
	f.StringP("output", "o", def.Output, "File the transcript is written to")
	f.BoolP("suppress_tester", "s", def.Suppress, "Don't record output until the first test is sent")
	f.StringSliceP("tests", "t", def.Tests, "Tests to run (or all). Separate names with commas or repeat the flag: -t main,lists or -t main -t lists")
	f.BoolP("verbose", "v", def.Verbose, "Print every passing test, duplicates and crash traces")
	f.String("image", def.Image, "Runtime image to load at 0x8000")
	f.String("dir", def.Dir, "Directory holding the test sources")
	f.String("mode", def.Mode, "How test sources are read: table or verbatim")
	f.StringSlice("startup", def.Startup, "Sources fed to the runtime before any test")
	f.Int("trace", def.Trace, "Instructions to print when the runtime crashes (with --verbose)")
	f.String("config", "", "Config file (default ./cthulhutest.yaml if present)")
	return cmd
}

// config layers flags over environment over config file over defaults.
func config(v *viper.Viper, cmd *cobra.Command) (*harness.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	def := harness.DefaultConfig()
	v.SetDefault("tests", def.Tests)
	v.SetDefault("available", def.Available)
	v.SetDefault("dir", def.Dir)
	v.SetDefault("extension", def.Extension)
	v.SetDefault("startup", def.Startup)
	v.SetDefault("mode", def.Mode)
	v.SetDefault("comment", def.Comment)
	v.SetDefault("section", def.Section)
	v.SetDefault("separator", def.Separator)
	v.SetDefault("quit", def.Quit)
	v.SetDefault("image", def.Image)
	v.SetDefault("output", def.Output)
	v.SetDefault("trace", def.Trace)
	v.SetDefault("mute", def.Mute)
	v.SetDefault("suppress_tester", def.Suppress)
	v.SetDefault("beep", def.Beep)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("prompt", def.Prompt)
	v.SetDefault("banner", def.Banner)
	v.SetDefault("panic_marker", def.PanicMarker)
	v.SetDefault("error_markers", def.ErrorMarkers)
	v.SetDefault("ignore", def.Ignore)
	v.SetDefault("runtime_name", def.RuntimeName)

	v.SetEnvPrefix("CTHULHUTEST")
	v.AutomaticEnv()

	if fn, _ := cmd.Flags().GetString("config"); fn != "" {
		v.SetConfigFile(fn)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("cthulhutest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg := &harness.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Logger = log.Default()
	return cfg, nil
}
