package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"time"

	"layout-server/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// s3API is the subset of *s3.Client the store calls.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	s3Client s3API
	bucket   string
	now      func() time.Time
}

// NewStore creates a new S3-based store using the default AWS credential chain.
func NewStore(bucketName string) core.WorkspaceStore {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client s3API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName, now: time.Now}
}

func (s *s3Store) getWorkspaceKey(ownerID, id string) (string, error) {
	// Keys must stay inside the owner's prefix.
	if path.Base(id) != id {
		return "", fmt.Errorf("invalid workspace id: must not be a path")
	}
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid workspace id: must not be empty or a dot directory")
	}
	if ownerID == "" || path.Base(ownerID) != ownerID {
		return "", fmt.Errorf("invalid owner id")
	}
	return path.Join(ownerID, id), nil
}

func (s *s3Store) fetch(ctx context.Context, key string) (*core.Workspace, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace data: %w", err)
	}

	var ws core.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace data: %w", err)
	}
	return &ws, nil
}

func (s *s3Store) List(ctx context.Context, ownerID string) ([]*core.Workspace, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "bucket": s.bucket})

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(ownerID + "/"),
	})

	workspaces := []*core.Workspace{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to list workspaces")
			return nil, fmt.Errorf("failed to list workspaces for owner %s: %w", ownerID, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			ws, err := s.fetch(ctx, key)
			if err != nil {
				log.WithError(err).Warnf("Failed to read object %s, skipping", key)
				continue
			}
			ws.OwnerID = ownerID
			ws.Data = nil
			workspaces = append(workspaces, ws)
		}
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].UpdatedAt.After(workspaces[j].UpdatedAt)
	})

	log.Debugf("Listed %d workspaces", len(workspaces))
	return workspaces, nil
}

func (s *s3Store) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	key, err := s.getWorkspaceKey(ownerID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id, "key": key})

	ws, err := s.fetch(ctx, key)
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Warn("Workspace object not found")
			return nil, fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		log.WithError(err).Error("Failed to get workspace")
		return nil, fmt.Errorf("failed to get workspace %s: %w", id, err)
	}
	ws.OwnerID = ownerID

	log.Debug("Workspace retrieved successfully")
	return ws, nil
}

func (s *s3Store) Save(ctx context.Context, workspace *core.Workspace) error {
	key, err := s.getWorkspaceKey(workspace.OwnerID, workspace.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": workspace.OwnerID, "workspace_id": workspace.ID, "key": key})

	now := s.now()
	if existing, err := s.fetch(ctx, key); err == nil {
		workspace.CreatedAt = existing.CreatedAt
	} else {
		workspace.CreatedAt = now
	}
	workspace.UpdatedAt = now

	data, err := json.Marshal(workspace)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.WithError(err).Error("Failed to save workspace")
		return fmt.Errorf("failed to save workspace %s: %w", workspace.ID, err)
	}

	log.Debug("Workspace saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, ownerID, id string) error {
	key, err := s.getWorkspaceKey(ownerID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id, "key": key})

	// DeleteObject succeeds for missing keys, so check first.
	_, err = s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			log.Warn("Workspace object not found for deletion")
			return fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		return fmt.Errorf("failed to check workspace %s: %w", id, err)
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete workspace")
		return fmt.Errorf("failed to delete workspace %s: %w", id, err)
	}

	log.Info("Workspace deleted successfully")
	return nil
}
