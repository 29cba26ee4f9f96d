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
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// rx filters of linux/net_tstamp.h
const (
	hwtstampTXON               int32 = 0x00000001
	hwtstampFilterAll          int32 = 0x00000001
	hwtstampFilterPTPv2L2Event int32 = 0x00000009
	hwtstampFilterPTPv2Event   int32 = 0x0000000c
)

// size of __kernel_timespec
const socketControlMessageTSBytes = 16

type ifreq struct {
	name [unix.IFNAMSIZ]byte
	data uintptr
}

type hwtstampConfig struct {
	flags    int32
	txType   int32
	rxFilter int32
}

// unix.Cmsghdr size differs depending on platform
var socketControlMessageHeaderOffset = binary.Size(unix.Cmsghdr{})

var timestampingOpt = unix.SO_TIMESTAMPING_NEW

func init() {
	// kernels before 5.x know nothing about SO_TIMESTAMPING_NEW
	var uname unix.Utsname
	if err := unix.Uname(&uname); err == nil && uname.Release[0] < '5' {
		timestampingOpt = unix.SO_TIMESTAMPING
	}
}

// scmDataToTime parses scm_timestamping. Hardware timestamp is in ts[2], software one in ts[0].
func scmDataToTime(data []byte) (time.Time, error) {
	if len(data) < socketControlMessageTSBytes*3 {
		return time.Time{}, fmt.Errorf("timestamp control message too short: %d bytes", len(data))
	}
	ts := byteToTime(data[socketControlMessageTSBytes*2 : socketControlMessageTSBytes*3])
	// time.Unix(0, 0).IsZero() is false, compare nanoseconds instead
	if ts.UnixNano() != 0 {
		return ts, nil
	}
	ts = byteToTime(data[0:socketControlMessageTSBytes])
	if ts.UnixNano() == 0 {
		return ts, fmt.Errorf("got zero timestamp")
	}
	return ts, nil
}

// byteToTime converts __kernel_timespec in host (little endian) order
func byteToTime(data []byte) time.Time {
	sec := int64(binary.LittleEndian.Uint64(data[0:8]))
	nsec := int64(binary.LittleEndian.Uint64(data[8:16]))
	return time.Unix(sec, nsec)
}

func ioctlTimestamp(fd int, ifname string, filter int32) error {
	hw := &hwtstampConfig{
		txType:   hwtstampTXON,
		rxFilter: filter,
	}
	i := &ifreq{data: uintptr(unsafe.Pointer(hw))}
	copy(i.name[:unix.IFNAMSIZ-1], ifname)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCSHWTSTAMP, uintptr(unsafe.Pointer(i))); errno != 0 {
		return fmt.Errorf("failed to run ioctl SIOCSHWTSTAMP: %s (%d)", unix.ErrnoName(errno), errno)
	}
	return nil
}

// enableTimestamps switches on TX and RX timestamps of requested type on the socket
func enableTimestamps(fd int, ifname string, ts Timestamping) error {
	var flags int
	switch ts {
	case HWTIMESTAMP:
		var err error
		for _, filter := range []int32{hwtstampFilterPTPv2L2Event, hwtstampFilterPTPv2Event, hwtstampFilterAll} {
			if err = ioctlTimestamp(fd, ifname, filter); err == nil {
				break
			}
		}
		if err != nil {
			return err
		}
		flags = unix.SOF_TIMESTAMPING_TX_HARDWARE |
			unix.SOF_TIMESTAMPING_RX_HARDWARE |
			unix.SOF_TIMESTAMPING_RAW_HARDWARE
	case SWTIMESTAMP:
		flags = unix.SOF_TIMESTAMPING_TX_SOFTWARE |
			unix.SOF_TIMESTAMPING_RX_SOFTWARE |
			unix.SOF_TIMESTAMPING_SOFTWARE
	default:
		return fmt.Errorf("unknown timestamping %q", ts)
	}
	// error queue carries only the timestamp, not the frame
	flags |= unix.SOF_TIMESTAMPING_OPT_TSONLY
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, timestampingOpt, flags); err != nil {
		return fmt.Errorf("setting SO_TIMESTAMPING: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SELECT_ERR_QUEUE, 1); err != nil {
		return fmt.Errorf("setting SO_SELECT_ERR_QUEUE: %w", err)
	}
	return nil
}

func waitForTXTS(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLPRI}}
	_, err := unix.Poll(fds, 1)
	return err
}

// recvoob reads only the control message of MSG_ERRQUEUE
func recvoob(fd int, oob []byte) (int, error) {
	var msg unix.Msghdr
	msg.Control = &oob[0]
	msg.SetControllen(len(oob))
	_, _, e1 := unix.Syscall(unix.SYS_RECVMSG, uintptr(fd), uintptr(unsafe.Pointer(&msg)), uintptr(unix.MSG_ERRQUEUE))
	if e1 != 0 {
		return 0, e1
	}
	return int(msg.Controllen), nil
}

// readTXTimestamp returns the latest TX timestamp from the error queue.
// Queue is drained completely, otherwise the next event message would get a stale timestamp.
func readTXTimestamp(fd int, oob, toob []byte) (time.Time, int, error) {
	var boob int
	txfound := false
	attempts := 0
	for ; attempts < maxTXTS; attempts++ {
		if !txfound {
			_ = waitForTXTS(fd)
		}
		n, err := recvoob(fd, toob)
		if err != nil {
			if txfound {
				break
			}
			continue
		}
		txfound = true
		boob = n
		copy(oob, toob)
	}
	if !txfound {
		return time.Time{}, attempts, fmt.Errorf("no TX timestamp found after %d tries", maxTXTS)
	}
	ts, err := socketControlMessageTimestamp(oob[:boob])
	return ts, attempts, err
}

// socketControlMessageTimestamp finds timestamp among socket control messages
func socketControlMessageTimestamp(b []byte) (time.Time, error) {
	mlen := 0
	for i := 0; i+socketControlMessageHeaderOffset <= len(b); i += mlen {
		h := (*unix.Cmsghdr)(unsafe.Pointer(&b[i]))
		mlen = int(h.Len)
		if mlen == 0 || i+mlen > len(b) {
			break
		}
		// SO_TIMESTAMPING may come back even when SO_TIMESTAMPING_NEW was requested
		if h.Level == unix.SOL_SOCKET && (int(h.Type) == unix.SO_TIMESTAMPING_NEW || int(h.Type) == unix.SO_TIMESTAMPING) {
			return scmDataToTime(b[i+socketControlMessageHeaderOffset : i+mlen])
		}
		mlen = cmsgAlign(mlen)
	}
	return time.Time{}, fmt.Errorf("failed to find timestamp in socket control message")
}

func cmsgAlign(n int) int {
	const align = int(unsafe.Sizeof(uintptr(0)))
	return (n + align - 1) &^ (align - 1)
}
