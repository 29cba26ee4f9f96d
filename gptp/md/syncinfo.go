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
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// SyncInfo carries time information between Sync receiver, upper layer and Sync sender
type SyncInfo struct {
	SourcePortIdentity      ptp.PortIdentity
	LogMessageInterval      ptp.LogInterval
	PreciseOriginTimestamp  ptp.Timestamp
	CorrectionField         ptp.Correction
	FollowUpCorrectionField ptp.Correction
	RateRatio               float64
	GMTimeBaseIndicator     uint16
	LastGMPhaseChange       ptp.ScaledNS
	ScaledLastGMFreqChange  int32
	// UpstreamTxTime is local time in ns when Sync left upstream port, corrected for link delay
	UpstreamTxTime int64
}

// LocalOrigin reports if SyncInfo was generated by this system as grandmaster
func (s *SyncInfo) LocalOrigin() bool {
	return s.PreciseOriginTimestamp.Empty()
}

func (s *SyncInfo) correctionNs() int64 {
	return s.CorrectionField.WholeNanoseconds() + s.FollowUpCorrectionField.WholeNanoseconds()
}
