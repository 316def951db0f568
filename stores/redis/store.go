package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"layout-server/core"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore connects to redis and returns a workspace store. Each workspace is
// a JSON string at workspace:<owner>:<id>; workspaces:<owner> is a set of ids.
func NewStore(addr, password string, db int) core.WorkspaceStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis at %s: %v", addr, err)
	}
	return newStore(client)
}

func newStore(client *redis.Client) *redisStore {
	return &redisStore{client: client, now: time.Now}
}

func workspaceKey(ownerID, id string) string {
	return fmt.Sprintf("workspace:%s:%s", ownerID, id)
}

func indexKey(ownerID string) string {
	return "workspaces:" + ownerID
}

func (s *redisStore) List(ctx context.Context, ownerID string) ([]*core.Workspace, error) {
	log := logrus.WithField("owner_id", ownerID)

	ids, err := s.client.SMembers(ctx, indexKey(ownerID)).Result()
	if err != nil {
		log.WithError(err).Error("Failed to read workspace index")
		return nil, err
	}

	workspaces := make([]*core.Workspace, 0, len(ids))
	if len(ids) == 0 {
		return workspaces, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = workspaceKey(ownerID, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.WithError(err).Error("Failed to read workspaces")
		return nil, err
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			log.WithField("workspace_id", ids[i]).Warn("Indexed workspace is missing, skipping")
			continue
		}
		var ws core.Workspace
		if err := json.Unmarshal([]byte(raw), &ws); err != nil {
			log.WithError(err).WithField("workspace_id", ids[i]).Warn("Failed to unmarshal workspace, skipping")
			continue
		}
		ws.OwnerID = ownerID
		ws.Data = nil
		workspaces = append(workspaces, &ws)
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].UpdatedAt.After(workspaces[j].UpdatedAt)
	})

	log.Debugf("Listed %d workspaces", len(workspaces))
	return workspaces, nil
}

func (s *redisStore) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	raw, err := s.client.Get(ctx, workspaceKey(ownerID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.Warn("Workspace with specified ID not found")
			return nil, fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		log.WithError(err).Error("Failed to retrieve workspace")
		return nil, err
	}

	var ws core.Workspace
	if err := json.Unmarshal(raw, &ws); err != nil {
		log.WithError(err).Error("Failed to unmarshal workspace")
		return nil, err
	}
	ws.OwnerID = ownerID

	log.Debug("Workspace retrieved successfully")
	return &ws, nil
}

func (s *redisStore) Save(ctx context.Context, workspace *core.Workspace) error {
	if workspace.ID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	log := logrus.WithFields(logrus.Fields{
		"owner_id":     workspace.OwnerID,
		"workspace_id": workspace.ID,
		"data_length":  len(workspace.Data),
	})

	now := s.now()
	if existing, err := s.Get(ctx, workspace.OwnerID, workspace.ID); err == nil {
		workspace.CreatedAt = existing.CreatedAt
	} else {
		workspace.CreatedAt = now
	}
	workspace.UpdatedAt = now

	data, err := json.Marshal(workspace)
	if err != nil {
		log.WithError(err).Error("Failed to marshal workspace")
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, workspaceKey(workspace.OwnerID, workspace.ID), data, 0)
		pipe.SAdd(ctx, indexKey(workspace.OwnerID), workspace.ID)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to save workspace")
		return err
	}

	log.Debug("Workspace saved successfully")
	return nil
}

func (s *redisStore) Delete(ctx context.Context, ownerID, id string) error {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, workspaceKey(ownerID, id))
		pipe.SRem(ctx, indexKey(ownerID), id)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete workspace")
		return err
	}
	if del.Val() == 0 {
		log.Warn("Workspace not found for deletion")
		return fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
	}

	log.Info("Workspace deleted successfully")
	return nil
}
