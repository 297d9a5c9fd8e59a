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

package node

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/daonode"
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/internal/config"
)

// Load parses the raw block files in blocksDir into the database and exits.
// A later load or serve continues from the last persisted snapshot.
func Load(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	blocksDir string,
) (int, error) {
	d, err := daonode.New(
		daonode.NewConfig(
			nodeOptions(cfg, logger, chain.NewDirSource(blocksDir))...,
		),
	)
	if err != nil {
		return 0, err
	}
	logger.Info(
		"parsing blocks from "+blocksDir,
		"component", "node",
	)
	count, err := d.Sync(ctx)
	if stopErr := d.Stop(); stopErr != nil {
		logger.Error("shutdown errors occurred", "component", "node", "error", stopErr)
	}
	if err != nil {
		return count, fmt.Errorf("failed after %d blocks: %w", count, err)
	}
	if view := d.View(); view != nil {
		logger.Info(
			fmt.Sprintf("finished parsing %d blocks", count),
			"component", "node",
			"height", view.ChainHeight(),
		)
	}
	return count, nil
}
