// Copyright (c) 2016 Pulcy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"path/filepath"
	"time"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/pulcy/elastic-haproxy/conductor"
	"github.com/pulcy/elastic-haproxy/metrics"
)

var (
	cmdRun = &cobra.Command{
		Use:   "run",
		Short: "Run the elastic HAProxy control plane",
		Long:  "Run the elastic HAProxy control plane",
		Run:   cmdRunRun,
	}

	runArgs struct {
		debug           bool
		configPath      string
		haproxyConfPath string
		socketDir       string
		haproxyBinary   string
		schedulerBinary string
		loopTime        int

		// metrics
		metricsHost string
		metricsPort int
	}
)

func init() {
	// Flags named and defaulted per spec.md §6.
	cmdRun.Flags().BoolVar(&runArgs.debug, "debug", false, "Enable debug logging")
	cmdRun.Flags().StringVar(&runArgs.configPath, "config", defaultConfigPath(), "Path of the declarative services config")
	cmdRun.Flags().StringVar(&runArgs.haproxyConfPath, "haproxy-config", defaultHAProxyConfPath, "Path of the generated haproxy config file")
	cmdRun.Flags().StringVar(&runArgs.socketDir, "socket", defaultSocketDir, "Directory holding the haproxy admin socket and pidfile")

	cmdRun.Flags().StringVar(&runArgs.haproxyBinary, "haproxy", defaultHAProxyBinary, "Path of the haproxy binary")
	cmdRun.Flags().StringVar(&runArgs.schedulerBinary, "scheduler", defaultSchedulerBinary, "Path of the scheduler CLI binary")
	cmdRun.Flags().IntVar(&runArgs.loopTime, "loop-time", defaultLoopTime, "Seconds between conductor ticks")

	// metrics
	cmdRun.Flags().StringVar(&runArgs.metricsHost, "metrics-host", defaultMetricsHost, "Host address to listen for metrics requests")
	cmdRun.Flags().IntVar(&runArgs.metricsPort, "metrics-port", defaultMetricsPort, "Port to listen for metrics requests")

	cmdMain.AddCommand(cmdRun)
}

func cmdRunRun(cmd *cobra.Command, args []string) {
	level := logging.INFO
	if runArgs.debug {
		level = logging.DEBUG
	}
	logging.SetLevel(level, cmdMain.Use)

	if runArgs.configPath == "" {
		Exitf("Please specify --config")
	}

	// Pidfile lives alongside the admin socket, per spec.md §6.
	pidPath := filepath.Join(runArgs.socketDir, "haproxy.pid")

	c, err := conductor.New(conductor.Paths{
		ConfigPath:      runArgs.configPath,
		HAProxyConfPath: runArgs.haproxyConfPath,
		HAProxyBinary:   runArgs.haproxyBinary,
		HAProxyPidPath:  pidPath,
		SocketDir:       runArgs.socketDir,
		SchedulerBinary: runArgs.schedulerBinary,
	})
	if err != nil {
		Exitf("Failed to initialize: %#v", err)
	}

	metricsConfig := metrics.Config{
		ProjectName:    projectName,
		ProjectVersion: projectVersion,
		ProjectBuild:   projectBuild,
		Host:           runArgs.metricsHost,
		Port:           runArgs.metricsPort,
	}
	if err := metrics.StartListener(metricsConfig, log); err != nil {
		Exitf("Failed to start metrics: %#v", err)
	}

	log.Infof("Starting %s (version %s build %s), tick every %ds", projectName, projectVersion, projectBuild, runArgs.loopTime)
	c.Run(time.Duration(runArgs.loopTime) * time.Second)
}
