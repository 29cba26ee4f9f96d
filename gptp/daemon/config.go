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

package daemon

import (
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/gptp/gptp/md"
	"github.com/facebook/gptp/gptp/transport"
	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// Role is what port does with time information
type Role string

// supported port roles
const (
	// RoleSlave ports receive time from the link peer
	RoleSlave Role = "slave"
	// RoleMaster ports send time to the link peer
	RoleMaster Role = "master"
	// RolePassive ports only measure link delay
	RolePassive Role = "passive"
	// RoleDisabled ports don't run any protocol
	RoleDisabled Role = "disabled"
)

// PortConfig describes a single gPTP port
type PortConfig struct {
	Iface                   string        `yaml:"iface"`
	Role                    Role          `yaml:"role"`
	NeighborPropDelayThresh time.Duration `yaml:"neighbor_prop_delay_thresh"` // link is not asCapable above this propagation delay
	DelayAsymmetry          time.Duration `yaml:"delay_asymmetry"`            // asymmetry of the link, positive when upstream direction is longer
	LogPdelayReqInterval    int8          `yaml:"log_pdelay_req_interval"`
	LogSyncInterval         int8          `yaml:"log_sync_interval"`
	AllowedLostResponses    uint8         `yaml:"allowed_lost_responses"`
	SyncReceiptTimeout      uint8         `yaml:"sync_receipt_timeout"`
}

// DefaultPortConfig returns PortConfig with 802.1AS defaults
func DefaultPortConfig(iface string) PortConfig {
	ds := md.NewPortDS()
	return PortConfig{
		Iface:                   iface,
		Role:                    RolePassive,
		NeighborPropDelayThresh: ds.NeighborPropDelayThresh,
		LogPdelayReqInterval:    ds.InitialLogPdelayReqInterval,
		LogSyncInterval:         ds.CurrentLogSyncInterval,
		AllowedLostResponses:    ds.AllowedLostResponses,
		SyncReceiptTimeout:      ds.SyncReceiptTimeout,
	}
}

// Validate PortConfig is sane
func (c *PortConfig) Validate() error {
	if c.Iface == "" {
		return fmt.Errorf("iface must be specified")
	}
	if c.Role != RoleSlave && c.Role != RoleMaster && c.Role != RolePassive && c.Role != RoleDisabled {
		return fmt.Errorf("role must be either %q, %q, %q or %q", RoleSlave, RoleMaster, RolePassive, RoleDisabled)
	}
	if c.NeighborPropDelayThresh <= 0 {
		return fmt.Errorf("neighbor_prop_delay_thresh must be greater than zero")
	}
	if c.LogPdelayReqInterval < -7 || c.LogPdelayReqInterval > 7 {
		return fmt.Errorf("log_pdelay_req_interval must be within [-7, 7]")
	}
	if c.LogSyncInterval < -7 || c.LogSyncInterval > 7 {
		return fmt.Errorf("log_sync_interval must be within [-7, 7]")
	}
	if c.SyncReceiptTimeout == 0 {
		return fmt.Errorf("sync_receipt_timeout must be greater than zero")
	}
	return nil
}

// PortDS returns port data set configured by c
func (c *PortConfig) PortDS() md.PortDS {
	ds := md.NewPortDS()
	ds.PttPortEnabled = c.Role != RoleDisabled
	ds.NeighborPropDelayThresh = c.NeighborPropDelayThresh
	ds.DelayAsymmetry = c.DelayAsymmetry
	ds.InitialLogPdelayReqInterval = c.LogPdelayReqInterval
	ds.CurLogPdelayReqInterval = c.LogPdelayReqInterval
	ds.PdelayReqInterval = tsmath.NewUScaledNS(1, c.LogPdelayReqInterval)
	ds.CurrentLogSyncInterval = c.LogSyncInterval
	ds.AllowedLostResponses = c.AllowedLostResponses
	ds.SyncReceiptTimeout = c.SyncReceiptTimeout
	return ds
}

// Config specifies gPTP daemon run options
type Config struct {
	Ports                      []PortConfig           `yaml:"ports"`
	ClockIdentity              string                 `yaml:"clock_identity"` // derived from MAC of the first port when empty
	Domain                     uint8                  `yaml:"domain"`
	Grandmaster                bool                   `yaml:"grandmaster"` // originate time on master ports instead of relaying it
	GrandmasterLogSyncInterval int8                   `yaml:"grandmaster_log_sync_interval"`
	Timestamping               transport.Timestamping `yaml:"timestamping"`
	TickInterval               time.Duration          `yaml:"tick_interval"`
	MonitoringPort             int                    `yaml:"monitoring_port"`
	PrometheusPort             int                    `yaml:"prometheus_port"` // 0 disables exporter
	MetricsAggregationWindow   time.Duration          `yaml:"metrics_aggregation_window"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Timestamping:               transport.HWTIMESTAMP,
		GrandmasterLogSyncInterval: -3,
		TickInterval:               time.Millisecond,
		MonitoringPort:             4270,
		MetricsAggregationWindow:   time.Duration(60) * time.Second,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("at least one port must be specified")
	}
	if len(c.Ports) > md.MaxPorts {
		return fmt.Errorf("at most %d ports are supported", md.MaxPorts)
	}
	seen := map[string]bool{}
	for i := range c.Ports {
		if err := c.Ports[i].Validate(); err != nil {
			return fmt.Errorf("invalid port %d config: %w", i+1, err)
		}
		if seen[c.Ports[i].Iface] {
			return fmt.Errorf("iface %q is used by more than one port", c.Ports[i].Iface)
		}
		seen[c.Ports[i].Iface] = true
	}
	if c.ClockIdentity != "" {
		if _, err := ptp.ParseClockIdentity(c.ClockIdentity); err != nil {
			return fmt.Errorf("invalid clock_identity: %w", err)
		}
	}
	if c.Timestamping != transport.HWTIMESTAMP && c.Timestamping != transport.SWTIMESTAMP {
		return fmt.Errorf("only %q and %q timestamping is supported", transport.HWTIMESTAMP, transport.SWTIMESTAMP)
	}
	if c.TickInterval <= 0 || c.TickInterval > 100*time.Millisecond {
		return fmt.Errorf("tick_interval must be greater than zero and at most 100ms")
	}
	if c.GrandmasterLogSyncInterval < -7 || c.GrandmasterLogSyncInterval > 7 {
		return fmt.Errorf("grandmaster_log_sync_interval must be within [-7, 7]")
	}
	if c.MetricsAggregationWindow <= 0 {
		return fmt.Errorf("metrics_aggregation_window must be greater than zero")
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	if c.PrometheusPort < 0 {
		return fmt.Errorf("prometheus_port must be 0 or positive")
	}
	return nil
}

// clockIdentity returns configured clock identity or derives it from the first port
func (c *Config) clockIdentity() (ptp.ClockIdentity, error) {
	if c.ClockIdentity != "" {
		return ptp.ParseClockIdentity(c.ClockIdentity)
	}
	iface, err := net.InterfaceByName(c.Ports[0].Iface)
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", c.Ports[0].Iface, err)
	}
	return ptp.NewClockIdentity(iface.HardwareAddr)
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(cData, c); err != nil {
		return nil, err
	}
	for i := range c.Ports {
		c.Ports[i].fillDefaults()
	}
	return c, nil
}

// fillDefaults sets values omitted in the config file
func (c *PortConfig) fillDefaults() {
	d := DefaultPortConfig(c.Iface)
	if c.Role == "" {
		c.Role = d.Role
	}
	if c.NeighborPropDelayThresh == 0 {
		c.NeighborPropDelayThresh = d.NeighborPropDelayThresh
	}
	if c.SyncReceiptTimeout == 0 {
		c.SyncReceiptTimeout = d.SyncReceiptTimeout
	}
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, ifaces []string, timestamping transport.Timestamping, monitoringPort int, grandmaster bool, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if len(ifaces) > 0 {
		warn("ports")
		cfg.Ports = make([]PortConfig, 0, len(ifaces))
		for _, iface := range ifaces {
			cfg.Ports = append(cfg.Ports, DefaultPortConfig(iface))
		}
	}
	if setFlags["timestamping"] {
		warn("timestamping")
		cfg.Timestamping = timestamping
	}
	if setFlags["monitoringport"] {
		warn("monitoringPort")
		cfg.MonitoringPort = monitoringPort
	}
	if setFlags["grandmaster"] {
		warn("grandmaster")
		cfg.Grandmaster = grandmaster
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
