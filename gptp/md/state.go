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

// PDelayReqState is a state of MDPdelayReq state machine
type PDelayReqState uint8

// MDPdelayReq states
const (
	PDelayReqNotEnabled PDelayReqState = iota
	PDelayReqInitialSendReq
	PDelayReqSendReq
	PDelayReqWaitResp
	PDelayReqWaitFollowUp
	PDelayReqWaitIntervalTimer
)

var pdelayReqStateToString = map[PDelayReqState]string{
	PDelayReqNotEnabled:        "NOT_ENABLED",
	PDelayReqInitialSendReq:    "INITIAL_SEND_PDELAY_REQ",
	PDelayReqSendReq:           "SEND_PDELAY_REQ",
	PDelayReqWaitResp:          "WAITING_FOR_PDELAY_RESP",
	PDelayReqWaitFollowUp:      "WAITING_FOR_PDELAY_RESP_FOLLOW_UP",
	PDelayReqWaitIntervalTimer: "WAITING_FOR_PDELAY_INTERVAL_TIMER",
}

func (s PDelayReqState) String() string {
	return pdelayReqStateToString[s]
}

// PDelayRespState is a state of MDPdelayResp state machine
type PDelayRespState uint8

// MDPdelayResp states
const (
	PDelayRespNotEnabled PDelayRespState = iota
	PDelayRespInitialWaitReq
	PDelayRespWaitReq
	PDelayRespWaitTimestamp
)

var pdelayRespStateToString = map[PDelayRespState]string{
	PDelayRespNotEnabled:     "NOT_ENABLED",
	PDelayRespInitialWaitReq: "INITIAL_WAITING_FOR_PDELAY_REQ",
	PDelayRespWaitReq:        "WAITING_FOR_PDELAY_REQ",
	PDelayRespWaitTimestamp:  "SENT_PDELAY_RESP_WAITING_FOR_TIMESTAMP",
}

func (s PDelayRespState) String() string {
	return pdelayRespStateToString[s]
}

// SyncRcvState is a state of MDSyncReceive state machine
type SyncRcvState uint8

// MDSyncReceive states
const (
	SyncRcvDiscard SyncRcvState = iota
	SyncRcvWaitSync
	SyncRcvWaitFollowUp
)

var syncRcvStateToString = map[SyncRcvState]string{
	SyncRcvDiscard:      "DISCARD",
	SyncRcvWaitSync:     "WAITING_FOR_SYNC",
	SyncRcvWaitFollowUp: "WAITING_FOR_FOLLOW_UP",
}

func (s SyncRcvState) String() string {
	return syncRcvStateToString[s]
}

// SyncSendState is a state of MDSyncSend state machine
type SyncSendState uint8

// MDSyncSend states
const (
	SyncSendInitializing SyncSendState = iota
	SyncSendSendSync
	SyncSendSendFollowUp
)

var syncSendStateToString = map[SyncSendState]string{
	SyncSendInitializing: "INITIALIZING",
	SyncSendSendSync:     "SEND_SYNC",
	SyncSendSendFollowUp: "SEND_FOLLOW_UP",
}

func (s SyncSendState) String() string {
	return syncSendStateToString[s]
}
