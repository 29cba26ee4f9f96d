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
	"fmt"
)

// Timestamping is a type of packet timestamps used by a port
type Timestamping string

const (
	// HWTIMESTAMP is a hardware timestamp
	HWTIMESTAMP Timestamping = "hardware"
	// SWTIMESTAMP is a software timestamp
	SWTIMESTAMP Timestamping = "software"
)

const (
	// frames are at most standard ethernet MTU, gPTP ones are much shorter
	frameSizeBytes = 1518
	// controlSizeBytes fits several timestamp control messages
	controlSizeBytes = 128
	// look only for X sequential TX timestamps
	maxTXTS = 100
	// txQueueLen is how many packets may wait for transmission per port
	txQueueLen = 16
)

// Set implements flag.Value
func (t *Timestamping) Set(v string) error {
	switch Timestamping(v) {
	case HWTIMESTAMP, SWTIMESTAMP:
		*t = Timestamping(v)
		return nil
	}
	return fmt.Errorf("unknown timestamping %q", v)
}

func (t *Timestamping) String() string {
	return string(*t)
}

// Type implements pflag.Value
func (t *Timestamping) Type() string {
	return "timestamping"
}
