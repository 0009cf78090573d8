package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	n1Min          int
	n1Max          int
	n2Min          int
	n2Max          int
	port           int
	prefix         string
	profile        bool
	resultsDelay   time.Duration
	roundLimit     int
	sessionTimeout time.Duration
	solvePoints    int
	templates      string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roundLimit < 1 {
		return fmt.Errorf("invalid round limit (must be at least 1): %d", c.roundLimit)
	}
	if c.solvePoints < 1 {
		return fmt.Errorf("invalid solve points (must be at least 1): %d", c.solvePoints)
	}
	if c.n1Min < 1 || c.n1Max < c.n1Min {
		return fmt.Errorf("invalid n1 range: %d..%d", c.n1Min, c.n1Max)
	}
	if c.n2Min < 1 || c.n2Max < c.n2Min {
		return fmt.Errorf("invalid n2 range: %d..%d", c.n2Min, c.n2Max)
	}
	if c.resultsDelay < 0 {
		return fmt.Errorf("invalid results delay: %s", c.resultsDelay)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CALCRUSH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "calcrush",
		Short:         "A real-time multiplayer integral-solving race, played in shared rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CALCRUSH_BIND)")
	fs.IntVar(&cfg.n1Min, "n1-min", 2, "lower bound for the first sampled coefficient (env: CALCRUSH_N1_MIN)")
	fs.IntVar(&cfg.n1Max, "n1-max", 9, "upper bound for the first sampled coefficient (env: CALCRUSH_N1_MAX)")
	fs.IntVar(&cfg.n2Min, "n2-min", 2, "lower bound for the second sampled coefficient (env: CALCRUSH_N2_MIN)")
	fs.IntVar(&cfg.n2Max, "n2-max", 5, "upper bound for the second sampled coefficient (env: CALCRUSH_N2_MAX)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: CALCRUSH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: CALCRUSH_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CALCRUSH_PROFILE)")
	fs.DurationVar(&cfg.resultsDelay, "results-delay", 500*time.Millisecond, "pause before final results replace the last round (env: CALCRUSH_RESULTS_DELAY)")
	fs.IntVar(&cfg.roundLimit, "round-limit", 5, "number of rounds before a game ends (env: CALCRUSH_ROUND_LIMIT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game rooms are removed (env: CALCRUSH_IDLE_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.solvePoints, "solve-points", 1, "points awarded per accepted solve (env: CALCRUSH_SOLVE_POINTS)")
	fs.StringVar(&cfg.templates, "templates", "", "path to a JSON problem template catalog (env: CALCRUSH_TEMPLATES)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: CALCRUSH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: CALCRUSH_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: CALCRUSH_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CALCRUSH_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("calcrush v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
