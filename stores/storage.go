package stores

import (
	"layout-server/config"
	"layout-server/core"
	"layout-server/stores/aws"
	"layout-server/stores/filesystem"
	"layout-server/stores/memory"
	"layout-server/stores/redis"
	"layout-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the workspace store selected by cfg.StorageType. The sqlite
// store additionally implements core.CheckpointStore.
func GetStore(cfg config.Config) core.WorkspaceStore {
	var store core.WorkspaceStore

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store = aws.NewStore(cfg.S3BucketName)
	case "redis":
		storageField["redisAddr"] = cfg.RedisAddr
		storageField["redisDB"] = cfg.RedisDB
		store = redis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		store = memory.NewWorkspaceStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
