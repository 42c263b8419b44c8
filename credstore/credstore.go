// Package credstore persists the single Yajutter API credential, backed by
// a Cloud Storage bucket in production or a local path for development.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// objectName is the fixed storage key for the credential.
const objectName = "credential.json"

type credential struct {
	APIKey  string    `json:"api_key"`
	SavedAt time.Time `json:"saved_at"`
}

// Store handles credential persistence. A change hook lets the rest of the
// system react when the credential is replaced (a new credential may see a
// different result set, so both caches must be dropped).
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	onChange  []func()
	mu        sync.Mutex
}

// New creates a credential store. When localPath is non-empty the bucket
// is ignored and the credential lives on the local filesystem.
func New(client *storage.Client, bucket, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

// OnChange registers a hook fired after every successful Save.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Load returns the stored credential, or "" (and no error) when none has
// been saved yet.
func (s *Store) Load(ctx context.Context) (string, error) {
	var data []byte

	if s.localPath != "" {
		var err error
		data, err = os.ReadFile(filepath.Join(s.localPath, objectName))
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil
			}
			return "", fmt.Errorf("read credential from local storage: %w", err)
		}
	} else {
		var readData []byte
		err := retry.Do(
			func() error {
				r, openErr := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
				if openErr != nil {
					if errors.Is(openErr, storage.ErrObjectNotExist) {
						return retry.Unrecoverable(openErr)
					}
					return fmt.Errorf("open storage reader: %w", openErr)
				}
				defer func() {
					if closeErr := r.Close(); closeErr != nil {
						s.logger.Warn("Failed to close storage reader", "error", closeErr)
					}
				}()

				var readErr error
				readData, readErr = io.ReadAll(r)
				if readErr != nil {
					return fmt.Errorf("read from storage: %w", readErr)
				}
				return nil
			},
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.MaxDelay(2*time.Minute),
			retry.MaxJitter(10*time.Second),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, retryErr error) {
				s.logger.Info("Retrying credential load after error", "attempt", n, "error", retryErr)
			}),
		)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("load credential after retries: %w", err)
		}
		data = readData
	}

	var cred credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return "", fmt.Errorf("unmarshal credential: %w", err)
	}
	return cred.APIKey, nil
}

// Save persists the credential and fires the registered change hooks.
func (s *Store) Save(ctx context.Context, key string) error {
	data, err := json.MarshalIndent(credential{APIKey: key, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, objectName)
		if err := os.WriteFile(filePath, data, 0o600); err != nil {
			return fmt.Errorf("write credential to local storage: %w", err)
		}
		s.logger.Info("Credential saved to local storage", "path", filePath)
	} else {
		err = retry.Do(
			func() error {
				w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
				if _, writeErr := w.Write(data); writeErr != nil {
					if closeErr := w.Close(); closeErr != nil {
						s.logger.Warn("Failed to close writer after error", "error", closeErr)
					}
					return fmt.Errorf("write to storage: %w", writeErr)
				}
				if closeErr := w.Close(); closeErr != nil {
					return fmt.Errorf("close storage writer: %w", closeErr)
				}
				return nil
			},
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.MaxDelay(2*time.Minute),
			retry.MaxJitter(10*time.Second),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, retryErr error) {
				s.logger.Info("Retrying credential save after error", "attempt", n, "error", retryErr)
			}),
		)
		if err != nil {
			return fmt.Errorf("save credential after retries: %w", err)
		}
		s.logger.Info("Credential saved", "bucket", s.bucket)
	}

	s.mu.Lock()
	hooks := make([]func(), len(s.onChange))
	copy(hooks, s.onChange)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}
