package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/spotduel/games/spotdiff"
	"github.com/pion/webrtc/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	clientURL     string
	databaseURL   string
	expirySkew    time.Duration
	leadTime      time.Duration
	level         int
	levelsFile    string
	origins       string
	port          int
	prefix        string
	profile       bool
	roundDuration time.Duration
	stun          []string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool

	allowed []string
	levels  spotdiff.Levels
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.leadTime < 0 {
		return fmt.Errorf("invalid lead time (must not be negative): %s", c.leadTime)
	}
	if c.roundDuration <= 0 {
		return fmt.Errorf("invalid round duration (must be positive): %s", c.roundDuration)
	}
	if c.expirySkew < 0 {
		return fmt.Errorf("invalid expiry skew (must not be negative): %s", c.expirySkew)
	}

	levels, err := spotdiff.LoadLevels(c.levelsFile)
	if err != nil {
		return err
	}
	if _, ok := levels[c.level]; !ok {
		return fmt.Errorf("unknown level: %d", c.level)
	}
	c.levels = levels

	c.allowed = parseOrigins(c.origins)

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// iceServers turns the configured STUN urls into the list handed to clients.
func (c *Config) iceServers() []webrtc.ICEServer {
	var urls []string
	for _, u := range c.stun {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SPOTDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "spotduel",
		Short:         "Real-time two-player spot-the-difference server.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SPOTDUEL_BIND)")
	fs.StringVar(&cfg.clientURL, "client-url", "", "base url of the web client, used for invite QR codes (env: SPOTDUEL_CLIENT_URL)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres url for round history, disabled when empty (env: SPOTDUEL_DATABASE_URL)")
	fs.DurationVar(&cfg.expirySkew, "expiry-skew", spotdiff.DefaultExpirySkew, "grace period after a round's end before the timer fires (env: SPOTDUEL_EXPIRY_SKEW)")
	fs.DurationVar(&cfg.leadTime, "lead-time", spotdiff.DefaultLeadTime, "delay between start and the first accepted claim (env: SPOTDUEL_LEAD_TIME)")
	fs.IntVar(&cfg.level, "level", 1, "level played by new rooms (env: SPOTDUEL_LEVEL)")
	fs.StringVar(&cfg.levelsFile, "levels", "", "json, yaml or toml file with extra level definitions (env: SPOTDUEL_LEVELS)")
	fs.StringVar(&cfg.origins, "origins", "*", "comma-separated list of allowed websocket origins (env: SPOTDUEL_ORIGINS)")
	fs.IntVarP(&cfg.port, "port", "p", 3001, "port to listen on (env: SPOTDUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SPOTDUEL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SPOTDUEL_PROFILE)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", spotdiff.DefaultRoundDuration, "length of a round (env: SPOTDUEL_ROUND_DURATION)")
	fs.StringSliceVar(&cfg.stun, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN server urls sent to clients (env: SPOTDUEL_STUN)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SPOTDUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SPOTDUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SPOTDUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SPOTDUEL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("spotduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
