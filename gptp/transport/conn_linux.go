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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/gptp/gptp/md"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// how often blocked Receive looks at the context
const rxPollInterval = 100 * time.Millisecond

// TXCallback is called from the transmit goroutine once egress timestamp of event message is known
type TXCallback func(b *Buffer)

// Conn is a raw ethernet socket bound to a single interface, exchanging gPTP frames with the link peer
type Conn struct {
	iface *net.Interface
	fd    int
	onTX  TXCallback

	txq       chan *Buffer
	closeOnce sync.Once

	rxBuf  []byte
	rxOOB  []byte
	txOOB  []byte
	txTOOB []byte
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// Listen opens timestamping raw socket on interface ifname
func Listen(ifname string, ts Timestamping, onTX TXCallback) (*Conn, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %q: %w", ifname, err)
	}
	if len(iface.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %q has no ethernet address", ifname)
	}
	proto := htons(uint16(EtherType))
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("creating packet socket: %w", err)
	}
	c := &Conn{
		iface:  iface,
		fd:     fd,
		onTX:   onTX,
		txq:    make(chan *Buffer, txQueueLen),
		rxBuf:  make([]byte, frameSizeBytes),
		rxOOB:  make([]byte, controlSizeBytes),
		txOOB:  make([]byte, controlSizeBytes),
		txTOOB: make([]byte, controlSizeBytes),
	}
	if err := c.setup(proto, ts); err != nil {
		unix.Close(fd)
		return nil, err
	}
	log.Infof("listening for gPTP on %s (%s), %s timestamps", ifname, iface.HardwareAddr, ts)
	return c, nil
}

func (c *Conn) setup(proto uint16, ts Timestamping) error {
	if err := unix.Bind(c.fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: c.iface.Index}); err != nil {
		return fmt.Errorf("binding to %s: %w", c.iface.Name, err)
	}
	mreq := &unix.PacketMreq{
		Ifindex: int32(c.iface.Index),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    uint16(len(PeerMulticast)),
	}
	copy(mreq.Address[:], PeerMulticast)
	if err := unix.SetsockoptPacketMreq(c.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		return fmt.Errorf("joining %s on %s: %w", PeerMulticast, c.iface.Name, err)
	}
	tv := unix.NsecToTimeval(rxPollInterval.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("setting receive timeout: %w", err)
	}
	if err := enableTimestamps(c.fd, c.iface.Name, ts); err != nil {
		return fmt.Errorf("enabling %s timestamps on %s: %w", ts, c.iface.Name, err)
	}
	return nil
}

// Iface returns name of the interface
func (c *Conn) Iface() string {
	return c.iface.Name
}

// Send queues packet for transmission. Ownership of the caller's reference passes to Conn.
func (c *Conn) Send(pkt md.Packet) error {
	b, ok := pkt.(*Buffer)
	if !ok {
		pkt.Unref()
		return fmt.Errorf("unsupported packet %T", pkt)
	}
	select {
	case c.txq <- b:
		return nil
	default:
		b.Unref()
		return fmt.Errorf("transmit queue of %s is full", c.iface.Name)
	}
}

// RunTX transmits queued packets until ctx is done
func (c *Conn) RunTX(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case b := <-c.txq:
					b.Unref()
				default:
					return ctx.Err()
				}
			}
		case b := <-c.txq:
			if err := c.transmit(b); err != nil {
				log.Errorf("%s: sending %s: %v", c.iface.Name, b.Message().MessageType(), err)
			}
			b.Unref()
		}
	}
}

func isEvent(t ptp.MessageType) bool {
	return t < ptp.MessageFollowUp
}

func (c *Conn) transmit(b *Buffer) error {
	frame, err := EncodeFrame(c.iface.HardwareAddr, b.Message())
	if err != nil {
		return err
	}
	if _, err := unix.Write(c.fd, frame); err != nil {
		return err
	}
	msgType := b.Message().MessageType()
	if !isEvent(msgType) {
		return nil
	}
	ts, attempts, err := readTXTimestamp(c.fd, c.txOOB, c.txTOOB)
	if err != nil {
		return fmt.Errorf("reading TX timestamp: %w", err)
	}
	log.Tracef("%s: %s seq=%d egress %v after %d attempts", c.iface.Name, msgType, b.Message().GetHeader().SequenceID, ts, attempts)
	b.SetTimestamp(ts)
	if c.onTX != nil {
		c.onTX(b)
	}
	return nil
}

// Receive blocks until a gPTP message arrives from the peer or ctx is done.
// Frames which can't be decoded are skipped.
func (c *Conn) Receive(ctx context.Context) (*Buffer, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, oobn, _, sa, err := unix.Recvmsg(c.fd, c.rxBuf, c.rxOOB, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("receiving on %s: %w", c.iface.Name, err)
		}
		if ll, ok := sa.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		src, msg, err := DecodeFrame(c.rxBuf[:n])
		if err != nil {
			log.Debugf("%s: skipping frame: %v", c.iface.Name, err)
			continue
		}
		ts, err := socketControlMessageTimestamp(c.rxOOB[:oobn])
		if err != nil {
			log.Debugf("%s: %s from %s: %v", c.iface.Name, msg.MessageType(), src, err)
			ts = time.Time{}
		}
		b := NewBuffer(c.iface.Name, msg)
		b.SetTimestamp(ts)
		return b, nil
	}
}

// Close closes the socket
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = unix.Close(c.fd)
	})
	return err
}
