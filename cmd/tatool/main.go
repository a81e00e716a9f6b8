// tatool serves project resources to running trials and runs module queues
// of registered executables.
//
// Usage: tatool [flags] [lab]
//
// The optional positional "lab" starts the server in lab mode, the same as
// --mode=lab. Flags override the TATOOL_* environment variables.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/seantiz/tatool/internal/api"
	"github.com/seantiz/tatool/internal/config"
	"github.com/seantiz/tatool/internal/executable"
	"github.com/seantiz/tatool/internal/executor"
	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/resource"
	"github.com/seantiz/tatool/internal/store"
	"github.com/seantiz/tatool/internal/trials"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := config.Load()

	var mode string
	var stimulusProject, stimulusFile string

	flagSet := pflag.NewFlagSet("tatool", pflag.ContinueOnError)
	flagSet.StringVar(&mode, "mode", cfg.Mode, "run mode: lab or web")
	flagSet.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	flagSet.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flagSet.StringVar(&cfg.ProjectsPath, "projects", cfg.ProjectsPath, "directory holding project resources")
	flagSet.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "URL trials resolve resource paths against")
	flagSet.StringVar(&stimulusProject, "stimulus-project", "demo", "public project the stimulus-list trial reads from")
	flagSet.StringVar(&stimulusFile, "stimulus-file", "stimuli.csv", "stimulus file of the stimulus-list trial")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg.Mode = config.ParseMode(mode)
	for _, arg := range flagSet.Args() {
		if arg == model.ModeLab {
			cfg.Mode = model.ModeLab
			continue
		}
		return fmt.Errorf("unexpected argument %q", arg)
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	logger.Info("tatool: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"mode", cfg.Mode,
		"projects_path", cfg.ProjectsPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg := executable.NewRegistry()
	reg.Register("timing-probe", &trials.TimingProbe{})
	reg.Register("stimulus-list", &trials.StimulusList{
		Resource: model.ResourceDescriptor{
			Project:      model.Project{Access: model.AccessPublic, Name: stimulusProject},
			ResourceType: "stimuli",
			ResourceName: stimulusFile,
		},
	})

	eng := executor.NewEngine(db, reg, logger,
		executor.WithMode(cfg.Mode),
		executor.WithControllerOptions(executable.WithResourceOptions(
			resource.WithBaseURL(cfg.BaseURL),
			resource.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		)),
	)

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger, api.WithProjectsDir(cfg.ProjectsPath))
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
