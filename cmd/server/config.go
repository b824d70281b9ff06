package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind      string
	port      int
	wordsFile string
	origins   []string
	publicURL string
	verbose   bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "draw-with-friends-api",
		Short:         "Multiplayer draw-and-guess game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: DRAW_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5000, "port to listen on (env: DRAW_PORT)")
	fs.StringVar(&cfg.wordsFile, "words-file", "", "path to a newline-separated word list (env: DRAW_WORDS_FILE)")
	fs.StringSliceVar(&cfg.origins, "allowed-origins", nil, "origins allowed for CORS and websocket upgrades; empty allows all (env: DRAW_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.publicURL, "public-url", "http://localhost:5000", "externally reachable base URL used in invite links (env: DRAW_PUBLIC_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: DRAW_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			fs.Set(f.Name, v.GetString(f.Name))
		}
	})

	return cmd
}
