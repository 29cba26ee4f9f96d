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

package md

import (
	"testing"

	"github.com/stretchr/testify/require"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

func TestSlotPut(t *testing.T) {
	var s slot
	require.True(t, s.empty())
	require.Nil(t, s.take())

	a := newFakePacket(&ptp.Sync{})
	b := newFakePacket(&ptp.Sync{})
	require.False(t, s.put(a))
	require.True(t, s.put(b))
	require.Equal(t, 0, a.refs)
	require.Equal(t, 1, b.refs)

	got := s.take()
	require.Same(t, b, got.(*fakePacket))
	require.True(t, s.empty())
	require.Equal(t, 1, b.refs)
}

func TestSlotPutMatching(t *testing.T) {
	var s slot
	a := newFakePacket(&ptp.PDelayResp{})
	b := newFakePacket(&ptp.PDelayResp{})
	// nothing wanted, first one stays
	require.True(t, s.putMatching(a, 1, noKey))
	require.False(t, s.putMatching(b, 2, noKey))
	require.Equal(t, 1, a.refs)
	require.Equal(t, 0, b.refs)

	s.release()
	require.Equal(t, 0, a.refs)
	require.True(t, s.empty())
	s.release()

	stale := newFakePacket(&ptp.PDelayResp{})
	fresh := newFakePacket(&ptp.PDelayResp{})
	dup := newFakePacket(&ptp.PDelayResp{})
	other := newFakePacket(&ptp.PDelayResp{})
	require.True(t, s.putMatching(stale, 6, 7))
	require.True(t, s.putMatching(fresh, 7, 7))
	require.Equal(t, 0, stale.refs)
	require.False(t, s.putMatching(dup, 7, 7))
	require.Equal(t, 0, dup.refs)
	require.False(t, s.putMatching(other, 8, 7))
	require.Equal(t, 0, other.refs)

	got := s.take()
	require.Same(t, fresh, got.(*fakePacket))
	require.Equal(t, 1, fresh.refs)
}

func TestUnref(t *testing.T) {
	a := newFakePacket(&ptp.Sync{})
	var p Packet = a
	unref(&p)
	require.Nil(t, p)
	require.Equal(t, 0, a.refs)
	unref(&p)
	require.Equal(t, 0, a.refs)
}
