package docstore

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/robofleet/change-request-bot/internal/models"
	"github.com/robofleet/change-request-bot/pkg/config"
)

// Store mirrors change requests into a Firestore collection, one document
// per request keyed by the request ID. Writes are fire-and-forget from the
// caller's point of view: the in-memory registry stays authoritative.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

// NewStore connects to Firestore with the configured service account.
func NewStore(ctx context.Context, cfg config.DocstoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "change_requests"
	}
	return &Store{client: client, collection: collection, logger: logger}, nil
}

// CreateRecord writes the full snapshot for a newly submitted request.
func (s *Store) CreateRecord(ctx context.Context, requestID int64, record models.DocRecord) error {
	_, err := s.client.Collection(s.collection).Doc(docID(requestID)).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("create record %d: %w", requestID, err)
	}
	s.logger.Sugar().Infow("docstore record created", "request_id", requestID)
	return nil
}

// UpdateRecord patches individual fields of an existing document.
func (s *Store) UpdateRecord(ctx context.Context, requestID int64, patch map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(patch))
	for path, value := range patch {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	_, err := s.client.Collection(s.collection).Doc(docID(requestID)).Update(ctx, updates)
	if err != nil {
		return fmt.Errorf("update record %d: %w", requestID, err)
	}
	s.logger.Sugar().Infow("docstore record updated", "request_id", requestID)
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func docID(requestID int64) string {
	return strconv.FormatInt(requestID, 10)
}
