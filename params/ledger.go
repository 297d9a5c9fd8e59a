// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package params

import (
	"fmt"
	"slices"
)

// ChangeEvent is a governance approved parameter value that applies from
// EffectiveHeight onward
type ChangeEvent struct {
	Param           Param
	Value           uint64
	EffectiveHeight uint64
}

// Source provides parameter values at a given block height
type Source interface {
	ParamValue(param Param, height uint64) uint64
}

// Ledger is the append-only history of parameter changes. It is not safe for
// concurrent use; the parser owns it and readers work on clones.
type Ledger struct {
	events []ChangeEvent
}

func NewLedger(events ...ChangeEvent) (*Ledger, error) {
	l := &Ledger{}
	for _, evt := range events {
		if err := l.Add(evt); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add records a change event. Events are kept ordered by effective height;
// a second event for the same parameter and height with a different value
// is a consensus violation and is rejected.
func (l *Ledger) Add(evt ChangeEvent) error {
	if !evt.Param.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownParam, uint8(evt.Param))
	}
	for _, existing := range l.events {
		if existing.Param != evt.Param ||
			existing.EffectiveHeight != evt.EffectiveHeight {
			continue
		}
		if existing.Value == evt.Value {
			return nil
		}
		return fmt.Errorf(
			"%w: %s at height %d has value %d, got %d",
			ErrConflictingChange,
			evt.Param,
			evt.EffectiveHeight,
			existing.Value,
			evt.Value,
		)
	}
	idx, _ := slices.BinarySearchFunc(
		l.events,
		evt.EffectiveHeight,
		func(e ChangeEvent, height uint64) int {
			if e.EffectiveHeight <= height {
				return -1
			}
			return 1
		},
	)
	l.events = slices.Insert(l.events, idx, evt)
	return nil
}

// ValueOf returns the value of the most recent change for param effective at
// or before height, or the parameter's default
func (l *Ledger) ValueOf(param Param, height uint64) uint64 {
	if l != nil {
		for i := len(l.events) - 1; i >= 0; i-- {
			evt := l.events[i]
			if evt.Param == param && evt.EffectiveHeight <= height {
				return evt.Value
			}
		}
	}
	return param.Default()
}

// ParamValue implements Source
func (l *Ledger) ParamValue(param Param, height uint64) uint64 {
	return l.ValueOf(param, height)
}

// Events returns a copy of all recorded events in effective height order
func (l *Ledger) Events() []ChangeEvent {
	if l == nil {
		return nil
	}
	return slices.Clone(l.events)
}

func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return &Ledger{}
	}
	return &Ledger{events: slices.Clone(l.events)}
}
