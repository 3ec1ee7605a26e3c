package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/lomik/zapwriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pysal/release2news/configs"
	"github.com/pysal/release2news/db"
	"github.com/pysal/release2news/endpoints"
	"github.com/pysal/release2news/endpoints/telegram"
	"github.com/pysal/release2news/feeds"
	"github.com/pysal/release2news/github"
	"github.com/pysal/release2news/notes"
)

var (
	configFile string
	outputDir  string
	packages   []string
	owner      string
)

var rootCmd = &cobra.Command{
	Use:   "release2news",
	Short: "Generate news entries for new package releases",
	Long: `Polls latest releases of the configured packages, compares them with the last
update of the news site and writes a news entry for every package released since.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runUpdate,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch latest releases and replace stored catalog",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List packages released after the last news update, using stored catalog",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var renderCmd = &cobra.Command{
	Use:   "render <package>",
	Short: "Print news entry for a package from stored catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file (yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "directory for generated news entries")
	rootCmd.PersistentFlags().StringSliceVar(&packages, "packages", nil, "comma separated list of packages to track")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "owner of the tracked packages")

	rootCmd.AddCommand(refreshCmd, checkCmd, renderCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	logger := zapwriter.Logger("main")

	cfg := configs.Default()
	_, err := os.Stat(configFile)
	if err == nil || cmd.Flags().Changed("config") {
		logger.Info("Will apply config from file",
			zap.String("config_file", configFile),
		)
		cfg, err = configs.Load(configFile)
		if err != nil {
			return err
		}
	}

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if len(packages) > 0 {
		cfg.Packages = packages
	}
	if owner != "" {
		cfg.Owner = owner
	}
	err = cfg.Validate()
	if err != nil {
		return err
	}

	err = zapwriter.ApplyConfig(cfg.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to apply logger config")
	}

	configs.Config = cfg
	zapwriter.Logger("main").Debug("loaded config", zap.Any("config", configs.Config))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newUpdater(cfg configs.Configuration, database db.Database) (*feeds.Updater, error) {
	client := github.NewClient(cfg.GitHubAPIURL, cfg.UserAgent, cfg.HTTPTimeout)

	var releases feeds.ReleaseSource = client
	if cfg.ReleaseSource == configs.ReleaseSourceAtom {
		releases = feeds.NewAtomSource(cfg.GitHubURL, cfg.UserAgent, cfg.HTTPTimeout)
	}

	var senders []endpoints.NotificationEndpoint
	for name, e := range cfg.Endpoints {
		zapwriter.Logger("main").Debug("initializing endpoint",
			zap.String("name", name),
			zap.Int("chats", len(e.ChatIDs)),
		)
		sender, err := telegram.InitializeTelegramEndpoint(e.Token, e.ChatIDs, database,
			telegram.WithAPIServer(e.APIServer),
			telegram.WithTimeout(cfg.HTTPTimeout),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "error initializing endpoint %s", name)
		}
		senders = append(senders, sender)
	}

	u := feeds.NewUpdater(feeds.Config{
		Owner:     cfg.Owner,
		NewsOwner: cfg.NewsOwner,
		NewsRepo:  cfg.NewsRepo,
		OutputDir: cfg.OutputDir,
	}, releases, client, database, notes.NewGenerator(cfg.Owner, cfg.GitHubURL), senders...)
	return u, nil
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg := configs.Config
	database, err := db.NewSQLite(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	u, err := newUpdater(cfg, database)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := u.Run(ctx, cfg.Packages)
	if result != nil {
		for _, path := range result.Notes {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
	}
	return err
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg := configs.Config
	database, err := db.NewSQLite(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	u, err := newUpdater(cfg, database)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := u.RefreshAll(ctx, cfg.Packages)
	if err != nil {
		return err
	}
	for _, e := range catalog {
		if e.Release == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\t-\n", e.Package)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Package, e.Release.Tag, e.Release.PublishedAt)
	}
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg := configs.Config
	database, err := db.OpenSQLite(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	u, err := newUpdater(cfg, database)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, updates, err := u.Check(ctx)
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(updates, "\n"))
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := configs.Config
	database, err := db.OpenSQLite(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	catalog, err := database.LoadCatalog()
	if err != nil {
		return err
	}

	release, ok := catalog.Get(args[0])
	if !ok {
		return errors.Errorf("package %q is not in the catalog", args[0])
	}
	if release == nil {
		return errors.Errorf("package %q has no known release", args[0])
	}

	fmt.Fprintln(cmd.OutOrStdout(), notes.NewGenerator(cfg.Owner, cfg.GitHubURL).Render(args[0], *release))
	return nil
}
