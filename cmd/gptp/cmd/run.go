/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/facebook/gptp/gptp/daemon"
	"github.com/facebook/gptp/gptp/transport"

	_ "net/http/pprof"
)

var (
	runConfigFlag         string
	runIfacesFlag         []string
	runTimestampingFlag   = transport.HWTIMESTAMP
	runMonitoringPortFlag int
	runGrandmasterFlag    bool
	runPprofFlag          string
)

func init() {
	RootCmd.AddCommand(runCmd)
	defaults := daemon.DefaultConfig()
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to the config")
	runCmd.Flags().StringSliceVarP(&runIfacesFlag, "iface", "i", nil, "network interfaces to run gPTP on, one port per interface. Overrides ports from the config")
	runCmd.Flags().Var(&runTimestampingFlag, "timestamping", "timestamping to use, either hardware or software")
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to start monitoring http server on")
	runCmd.Flags().BoolVar(&runGrandmasterFlag, "grandmaster", false, "originate time on master ports")
	runCmd.Flags().StringVar(&runPprofFlag, "pprof", "", "Address to have the profiler listen on, disabled if empty.")
}

func runDaemon(cfg *daemon.Config) error {
	stats := daemon.NewJSONStats()
	go func() {
		if err := stats.Start(cfg.MonitoringPort, cfg.MetricsAggregationWindow); err != nil {
			log.Errorf("Failed to start monitoring: %v", err)
		}
	}()
	if cfg.PrometheusPort > 0 {
		exporter := daemon.NewPrometheusExporter(stats)
		go func() {
			if err := exporter.Start(cfg.PrometheusPort); err != nil {
				log.Errorf("Failed to start prometheus exporter: %v", err)
			}
		}()
	}
	d, err := daemon.New(cfg, stats)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("stopped")
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run gPTP media-dependent layer on network interfaces",
	Run: func(c *cobra.Command, _ []string) {
		ConfigureVerbosity()

		setFlags := map[string]bool{}
		c.Flags().Visit(func(f *pflag.Flag) {
			setFlags[f.Name] = true
		})
		cfg, err := daemon.PrepareConfig(runConfigFlag, runIfacesFlag, runTimestampingFlag, runMonitoringPortFlag, runGrandmasterFlag, setFlags)
		if err != nil {
			log.Fatal(err)
		}
		if runPprofFlag != "" {
			go func() {
				if err := http.ListenAndServe(runPprofFlag, nil); err != nil {
					log.Errorf("Failed to start pprof. Err: %v", err)
				}
			}()
		}
		if err := runDaemon(cfg); err != nil {
			log.Fatal(err)
		}
	},
}
