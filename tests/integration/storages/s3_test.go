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

package storages

import (
	"bytes"
	"context"
	"io"
	"path"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/Enybeatz/psycopg/internal/storages/s3"
)

const (
	testExportId     = "roundtrip"
	testPartName     = "0.dat.gz"
	testManifestName = "metadata.json"
)

var (
	testPartBody     = []byte("1\tacademy dinosaur\n")
	testManifestBody = []byte(`{"export_id":"roundtrip"}`)
)

type S3StorageSuite struct {
	suite.Suite
	cfg *s3.Config
	st  *s3.Storage
}

func (suite *S3StorageSuite) SetupSuite() {
	suite.Require().NotEmpty(storageS3Endpoint, "-storageS3Endpoint non-empty flag required")
	suite.Require().NotEmpty(storageS3Bucket, "-storageS3Bucket non-empty flag required")
	suite.Require().NotEmpty(storageS3Region, "-storageS3Region non-empty flag required")
	suite.Require().NotEmpty(storageS3AccessKeyId, "-storageS3AccessKeyId non-empty flag required")
	suite.Require().NotEmpty(storageS3SecretAccessKey, "-storageS3SecretAccessKey non-empty flag required")
	suite.cfg = s3.NewConfig()
	suite.cfg.Endpoint = storageS3Endpoint
	suite.cfg.Bucket = storageS3Bucket
	suite.cfg.Region = storageS3Region
	suite.cfg.AccessKeyId = storageS3AccessKeyId
	suite.cfg.SecretAccessKey = storageS3SecretAccessKey
	suite.cfg.Prefix = storageS3Prefix

	var err error
	suite.st, err = s3.NewStorage(context.Background(), suite.cfg, zerolog.LevelDebugValue)
	suite.Require().NoError(err)
}

// TestS3Ops walks the storage through the object lifecycle of an export:
// part and manifest uploads, directory listing, existence probes and the
// recursive delete the delete command relies on.
func (suite *S3StorageSuite) TestS3Ops() {
	suite.Run("new storage", func() {
		_, err := s3.NewStorage(context.Background(), suite.cfg, zerolog.LevelDebugValue)
		suite.Require().NoError(err)
	})

	suite.Run("put object", func() {
		err := suite.st.PutObject(
			context.Background(), path.Join(testExportId, testPartName), bytes.NewBuffer(testPartBody),
		)
		suite.Require().NoError(err)
		err = suite.st.PutObject(
			context.Background(), path.Join(testExportId, testManifestName), bytes.NewBuffer(testManifestBody),
		)
		suite.Require().NoError(err)
	})

	suite.Run("get object", func() {
		obj, err := suite.st.GetObject(context.Background(), path.Join(testExportId, testManifestName))
		suite.Require().NoError(err)
		data, err := io.ReadAll(obj)
		suite.Require().NoError(err)
		suite.Require().NoError(obj.Close())
		suite.Require().Equal(testManifestBody, data)
	})

	suite.Run("walking", func() {
		err := suite.st.PutObject(context.Background(), "/marker.dat", bytes.NewBuffer([]byte("marker")))
		suite.Require().NoError(err)

		files, dirs, err := suite.st.ListDir(context.Background())
		suite.Require().NoError(err)
		suite.Require().Equal([]string{"marker.dat"}, files)
		suite.Require().Len(dirs, 1)
		suite.Require().Equal(testExportId, dirs[0].Dirname())
		s3Dir := dirs[0].(*s3.Storage)
		suite.Require().Equal(path.Join(suite.cfg.Bucket, suite.cfg.Prefix, testExportId)+"/", s3Dir.GetCwd())

		files, dirs, err = dirs[0].ListDir(context.Background())
		suite.Require().NoError(err)
		suite.Require().Len(files, 2)
		suite.Require().Contains(files, testPartName)
		suite.Require().Contains(files, testManifestName)
		suite.Require().Len(dirs, 0)
	})

	suite.Run("exists", func() {
		exportDir := suite.st.SubStorage(testExportId, true)

		exist, err := exportDir.Exists(context.Background(), testManifestName)
		suite.Require().NoError(err)
		suite.Require().True(exist)

		exist, err = exportDir.Exists(context.Background(), "1.dat.gz")
		suite.Require().NoError(err)
		suite.Require().False(exist)
	})

	suite.Run("delete", func() {
		err := suite.st.Delete(context.Background(), "/marker.dat")
		suite.Require().NoError(err)

		files, _, err := suite.st.ListDir(context.Background())
		suite.Require().NoError(err)
		suite.Require().NotContains(files, "marker.dat")
	})

	suite.Run("delete all", func() {
		err := suite.st.DeleteAll(context.Background(), testExportId)
		suite.Require().NoError(err)

		_, dirs, err := suite.st.ListDir(context.Background())
		suite.Require().NoError(err)
		for _, dir := range dirs {
			suite.Require().NotEqual(testExportId, dir.Dirname())
		}
	})
}

func TestS3StorageSuite(t *testing.T) {
	suite.Run(t, new(S3StorageSuite))
}
