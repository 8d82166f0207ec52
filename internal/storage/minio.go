// Package storage archives finished conversation transcripts to MinIO.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/logger"
)

const DefaultBucket = "moviegraph-transcripts"

type Client struct {
	mc     *minio.Client
	bucket string
}

// Config holds MinIO connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type Transcript struct {
	SessionID  string           `json:"session_id"`
	Profile    string           `json:"profile"`
	ArchivedAt time.Time        `json:"archived_at"`
	Turns      []TranscriptTurn `json:"turns"`
}

type TranscriptTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	return &Client{mc: mc, bucket: bucket}, nil
}

// Init creates the transcript bucket if it doesn't exist
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
		logger.Info("bucket created", "bucket", c.bucket)
	}

	return nil
}

func NewTranscript(profile, sessionID string, turns []history.Turn, at time.Time) Transcript {
	t := Transcript{
		SessionID:  sessionID,
		Profile:    profile,
		ArchivedAt: at.UTC(),
		Turns:      make([]TranscriptTurn, len(turns)),
	}
	for i, turn := range turns {
		t.Turns[i] = TranscriptTurn{Role: string(turn.Role), Content: turn.Content, CreatedAt: turn.CreatedAt}
	}
	return t
}

// ObjectName is <profile>/<session>/<timestamp>.json so a session ended more
// than once keeps every transcript.
func (t Transcript) ObjectName() string {
	return path.Join(t.Profile, t.SessionID, t.ArchivedAt.Format("20060102T150405Z")+".json")
}

// Archive uploads the transcript and returns its object name. Sessions
// without turns are skipped and yield "".
func (c *Client) Archive(ctx context.Context, profile, sessionID string, turns []history.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	t := NewTranscript(profile, sessionID, turns, time.Now())
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	name := t.ObjectName()
	_, err = c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", c.bucket, name, err)
	}

	logger.Debug("transcript archived", "bucket", c.bucket, "name", name, "turns", len(turns))
	return name, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Healthy checks if MinIO is reachable
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.mc.BucketExists(ctx, c.bucket)
	return err == nil
}
