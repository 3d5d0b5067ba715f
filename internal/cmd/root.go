package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/logging"
)

// Set at build time with -ldflags "-X ...cmd.Version=...".
var (
	Version = "0.1.0"
	Commit  = "dev"
)

type rootOptions struct {
	cfgFile string
}

// NewRootCmd builds the hotdog command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "hotdog",
		Short: "Slack hot dog detector",
		Long: `hotdog receives Slack file_share events, classifies the shared image
and replies in the channel with "Hotdog ✅" or "Not hotdog ❌".`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/hotdog/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.cfgFile)
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("hotdog"))
}
