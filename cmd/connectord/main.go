// Command connectord bootstraps and runs the content connector ETL
// engine: one crawl per named task, driven through orchestrate.Orchestrator
// (spec §4.6, §6 "CLI"). Flag handling follows the teacher's own daemon
// entrypoint (ais/daemon.go): flag.StringVar/BoolVar per option,
// registered in init(), with -h triggering flag.Usage().
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/propsrc"

	_ "github.com/nsdconnect/crawler/transform/bagcopy"
	_ "github.com/nsdconnect/crawler/transform/contentclean"
	_ "github.com/nsdconnect/crawler/transform/doctype"
	_ "github.com/nsdconnect/crawler/transform/fielddelete"
	_ "github.com/nsdconnect/crawler/transform/fieldmapper"
	_ "github.com/nsdconnect/crawler/transform/pccollapse"
	_ "github.com/nsdconnect/crawler/transform/pccomposite"
)

const usage = `
   Usage:
        connectord --run <task>|all --cfgfile </path/to/config.toml> [--logfile <path>]
        connectord --test <task>|all --cfgfile </path/to/config.toml>
`

var cli struct {
	run     string
	test    string
	cfgfile string
	logfile string
	help    bool
}

func init() {
	flag.StringVar(&cli.run, "run", "", "name of the task to run, or \"all\"")
	flag.StringVar(&cli.test, "test", "", "name of the task to validate (dry-run, no publish), or \"all\"")
	flag.StringVar(&cli.cfgfile, "cfgfile", "", "path to the TOML configuration file")
	flag.StringVar(&cli.logfile, "logfile", "", "path to the log file (default: stderr)")
	flag.BoolVar(&cli.help, "help", false, "show usage and exit")
}

func main() {
	os.Exit(run())
}

// run implements the CLI's exit-code contract (spec §6 "Exit codes: 0
// success, non-zero on fatal init or configuration error").
func run() int {
	flag.Parse()
	if cli.help || len(os.Args[1:]) == 0 {
		flag.Usage()
		fmt.Fprint(os.Stderr, usage)
		return 0
	}
	if cli.logfile != "" {
		// glog names its own log files within a directory (program,
		// host, user, timestamp) rather than accepting one literal
		// path; --logfile names that directory.
		flag.Set("log_dir", filepath.Dir(cli.logfile))
		flag.Set("logtostderr", "false")
		flag.Set("alsologtostderr", "true")
	}
	defer glog.Flush()

	if cli.cfgfile == "" {
		glog.Errorf("connectord: --cfgfile is required")
		return 1
	}
	taskArg, validationMode := cli.run, false
	if taskArg == "" {
		taskArg, validationMode = cli.test, true
	}
	if taskArg == "" {
		glog.Errorf("connectord: one of --run or --test is required")
		return 1
	}

	bag := propsrc.New()
	if err := bag.Apply(propsrc.FileSource{Path: cli.cfgfile}); err != nil {
		glog.Errorf("connectord: loading %s: %v", cli.cfgfile, err)
		return 1
	}
	if err := bag.Apply(propsrc.EnvOverlay{Prefix: "NSD"}); err != nil {
		glog.Errorf("connectord: loading environment overrides: %v", err)
		return 1
	}

	names := bag.Strings("tasks.names")
	if taskArg != "all" {
		names = []string{taskArg}
	}
	if len(names) == 0 {
		glog.Errorf("connectord: no tasks configured (tasks.names is empty)")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("connectord: received %v, requesting graceful shutdown", sig)
		cancel()
	}()

	exitCode := 0
	for _, name := range names {
		tc, err := loadTask(bag, name)
		if err != nil {
			glog.Errorf("connectord: %v", err)
			exitCode = 1
			continue
		}
		tc.ValidationMode = validationMode

		if err := runTask(ctx, tc); err != nil {
			if cmn.ClassOf(err) == cmn.ClassCancelled {
				glog.Infof("connectord: task %q cancelled by shutdown", name)
			} else {
				glog.Errorf("connectord: task %q failed: %v", name, err)
			}
			exitCode = 1
		}
	}
	return exitCode
}
