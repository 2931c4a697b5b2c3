// Copyright 2023 Greenmask
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

package exportstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Enybeatz/psycopg/internal/export"
	"github.com/Enybeatz/psycopg/internal/storages"
)

const (
	DoneStatusName            = "done"
	UnknownOrFailedStatusName = "unknown or failed"
)

// GetExportStatusAndManifest determines the state of one export directory.
// The manifest is written last, so its presence marks a completed export;
// anything without one either failed or is still running.
func GetExportStatusAndManifest(ctx context.Context, st storages.Storager) (string, *export.Manifest, error) {
	exist, err := st.Exists(ctx, export.MetadataObjectName)
	if err != nil {
		return "", nil, fmt.Errorf("cannot check manifest existence: %w", err)
	}
	if !exist {
		return UnknownOrFailedStatusName, nil, nil
	}

	mf, err := GetManifest(ctx, st)
	if err != nil {
		if errors.Is(err, storages.ErrFileNotFound) {
			return UnknownOrFailedStatusName, nil, nil
		}
		return "", nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	return DoneStatusName, mf, nil
}

func GetManifest(ctx context.Context, st storages.Storager) (*export.Manifest, error) {
	f, err := st.GetObject(ctx, export.MetadataObjectName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close manifest file")
		}
	}()

	mf := &export.Manifest{}
	if err := json.NewDecoder(f).Decode(mf); err != nil {
		return nil, fmt.Errorf("cannot decode manifest: %w", err)
	}
	return mf, nil
}
