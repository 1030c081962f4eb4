package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ormasoftchile/stepfix/pkg/config"
	"github.com/ormasoftchile/stepfix/pkg/diff"
	"github.com/ormasoftchile/stepfix/pkg/ecosystem/tui"
	"github.com/ormasoftchile/stepfix/pkg/observability"
	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/rewrite"
	"github.com/ormasoftchile/stepfix/pkg/schema"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
	runID   string
	review  reviewFunc
}

func newApp() *app {
	return &app{
		v:      viper.New(),
		logger: zap.NewNop(),
		review: func(source string, rep *rewrite.Report, d *diff.DiffResult) (tui.Decision, error) {
			return tui.Review(source, rep, d)
		},
	}
}

func newRootCmd() *cobra.Command { return newRootCmdFor(newApp()) }

func newRootCmdFor(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:   "stepfix",
		Short: "Rewrite legacy field inputs in automation templates",
		Long: "stepfix finds manually confirmed field inputs inside the regular and overtime\n" +
			"branches of an automation template and rewrites them into validated retry steps.",
		Version:       fmt.Sprintf("%s (build: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	root.SetVersionTemplate("stepfix {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./stepfix.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("profile", "", "rule profile YAML (default: embedded attendance profile)")
	pf.String("strategy", "", "rewrite strategy: collapse or confirm")
	pf.String("sentinel", "", "settle wait check: adjacent or anywhere")
	for key, name := range map[string]string{
		"logger.level":     "log-level",
		"logger.format":    "log-format",
		"rewrite.profile":  "profile",
		"rewrite.strategy": "strategy",
		"rewrite.sentinel": "sentinel",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(name))
	}

	root.AddCommand(
		newValidateCmd(a),
		newRewriteCmd(a),
		newVerifyCmd(a),
		newInspectCmd(a),
		newSchemaCmd(a),
		newPreviewCmd(a),
		newProfileCmd(a),
		newVersionCmd(),
	)
	return root
}

// initialize loads configuration and starts the logger. Logs go to stderr so
// stdout stays free for documents and reports.
func (a *app) initialize() error {
	if err := config.Load(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	observability.InitializeLogger(cfg.Logger)
	a.runID = uuid.NewString()
	a.logger = observability.GetLogger().With(zap.String("run_id", a.runID))
	a.logger.Debug("configuration loaded",
		zap.String("config_file", a.v.ConfigFileUsed()),
		zap.String("strategy", cfg.Rewrite.Strategy),
		zap.String("sentinel", cfg.Rewrite.Sentinel),
	)
	return nil
}

func (a *app) profile() (*profile.Profile, error) {
	p, err := a.cfg.Rewrite.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (a *app) rewriter(source string) (*rewrite.Rewriter, error) {
	p, err := a.profile()
	if err != nil {
		return nil, err
	}
	return rewrite.New(p,
		rewrite.WithLogger(a.logger.Named("rewrite")),
		rewrite.WithRunID(a.runID),
		rewrite.WithSource(source),
	), nil
}

func (a *app) encodeOptions() template.EncodeOptions {
	return template.EncodeOptions{Indent: a.cfg.Rewrite.IndentString()}
}

// printFindings writes validation findings in the gert layout and returns
// the number of errors.
func printFindings(w io.Writer, errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity == schema.SeverityWarning {
			fmt.Fprintf(w, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "    at: %s\n", e.Path)
			}
		}
	}
	for _, e := range errs {
		if e.Severity != schema.SeverityWarning {
			n++
			fmt.Fprintf(w, "  %d. [%s] %s\n", n, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "     at: %s\n", e.Path)
			}
		}
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
