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

package daonode

import "github.com/blinklabs-io/daonode/params"

// AddParamChange changes a parameter of the node's ledger state. Used to
// shorten the cycle before the first block is parsed.
func (n *Node) AddParamChange(evt params.ChangeEvent) error {
	return n.state.AddParamChange(evt)
}

var CheckParamChanges = checkParamChanges
