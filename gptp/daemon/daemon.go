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

/*
Package daemon runs gPTP media-dependent layer on a set of network interfaces.
*/
package daemon

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/gptp/gptp/md"
	"github.com/facebook/gptp/gptp/transport"
)

// how often port status is published to stats
const statusInterval = time.Second

// Daemon ties state machines of all ports with sockets
type Daemon struct {
	cfg     *Config
	stats   *JSONStats
	engine  *md.Engine
	builder *transport.Builder
	sender  *transport.Sender
	relay   *Relay

	ports      []md.PortID
	portConfig map[md.PortID]PortConfig
	lastStatus time.Time
}

// New creates Daemon with all configured ports
func New(cfg *Config, stats *JSONStats, opts ...md.Option) (*Daemon, error) {
	clock, err := cfg.clockIdentity()
	if err != nil {
		return nil, fmt.Errorf("determining clock identity: %w", err)
	}
	d := &Daemon{
		cfg:        cfg,
		stats:      stats,
		builder:    transport.NewBuilder(cfg.Domain),
		sender:     transport.NewSender(),
		relay:      NewRelay(clock, cfg.Grandmaster, cfg.GrandmasterLogSyncInterval),
		portConfig: map[md.PortID]PortConfig{},
	}
	d.engine = md.New(md.EngineConfig{ClockIdentity: clock}, d.builder, d.sender, d.relay, stats, opts...)
	d.relay.Attach(d.engine)
	for _, pc := range cfg.Ports {
		id, err := d.engine.AddPort(pc.PortDS())
		if err != nil {
			return nil, err
		}
		d.builder.AddPort(id, pc.Iface, d.engine.PortDS(id))
		d.relay.SetRole(id, pc.Role)
		d.ports = append(d.ports, id)
		d.portConfig[id] = pc
		log.Infof("[port %d] %s as %s, identity %s", id, pc.Iface, pc.Role, d.engine.PortDS(id).PortIdentity)
	}
	d.engine.InitStateMachines()
	return d, nil
}

// Engine returns media-dependent layer of the daemon
func (d *Daemon) Engine() *md.Engine {
	return d.engine
}

// Relay returns layer above media-dependent state machines
func (d *Daemon) Relay() *Relay {
	return d.relay
}

// AddLink attaches transmit side of the port
func (d *Daemon) AddLink(id md.PortID, l transport.Link) {
	d.sender.AddLink(id, l)
}

// tick runs state machines of every port once
func (d *Daemon) tick(now time.Time) {
	d.relay.Tick(now)
	for _, id := range d.ports {
		d.engine.StateMachines(id)
	}
	if now.Sub(d.lastStatus) >= statusInterval {
		d.publishStatus()
		d.lastStatus = now
	}
}

func (d *Daemon) publishStatus() {
	for _, id := range d.ports {
		snap, err := d.engine.Snapshot(id)
		if err != nil {
			log.Errorf("[port %d] %v", id, err)
			continue
		}
		pc := d.portConfig[id]
		status := NewPortStatus(snap, pc.Iface, pc.Role)
		if info, found := d.relay.LastSync(id); found {
			status.LastSyncFrom = info.SourcePortIdentity.String()
		}
		d.stats.SetPortStatus(status)
	}
}

// runTicker drives state machines until ctx is done
func (d *Daemon) runTicker(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.tick(now)
		}
	}
}

// receive passes everything arriving on conn to the port
func (d *Daemon) receive(ctx context.Context, id md.PortID, conn *transport.Conn) error {
	for {
		b, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		d.engine.Receive(id, b)
	}
}

// Run opens sockets of all ports and runs the protocol until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	conns := make([]*transport.Conn, 0, len(d.ports))
	defer func() {
		for _, c := range conns {
			if err := c.Close(); err != nil {
				log.Warningf("closing %s: %v", c.Iface(), err)
			}
		}
	}()
	for _, id := range d.ports {
		id := id
		pc := d.portConfig[id]
		if pc.Role == RoleDisabled {
			continue
		}
		conn, err := transport.Listen(pc.Iface, d.cfg.Timestamping, func(b *transport.Buffer) {
			d.engine.TxTimestamp(id, b)
		})
		if err != nil {
			return fmt.Errorf("port %d: %w", id, err)
		}
		conns = append(conns, conn)
		d.AddLink(id, conn)
		eg.Go(func() error {
			return conn.RunTX(ctx)
		})
		eg.Go(func() error {
			return d.receive(ctx, id, conn)
		})
	}
	eg.Go(func() error {
		return d.runTicker(ctx)
	})
	return eg.Wait()
}
