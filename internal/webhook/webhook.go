package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// DefaultRetryDelays are used when none are configured
var DefaultRetryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// Repository records delivery attempts
type Repository interface {
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	ListDeliveries(ctx context.Context, limit int) ([]models.WebhookDelivery, error)
}

// Options configures a Service
type Options struct {
	URLs        []string
	Secret      string
	Timeout     time.Duration
	RetryDelays []time.Duration
	Repository  Repository
	Logger      *logging.Logger
}

// Service posts signed review events to configured endpoints
type Service struct {
	client      *http.Client
	urls        []string
	secret      string
	retryDelays []time.Duration
	repo        Repository
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new webhook service
func NewService(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelays == nil {
		opts.RetryDelays = DefaultRetryDelays
	}
	if opts.Repository == nil {
		opts.Repository = NewMemoryRepository(200)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		urls:        opts.URLs,
		secret:      opts.Secret,
		retryDelays: opts.RetryDelays,
		repo:        opts.Repository,
		logger:      opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Name identifies this notifier in logs and metrics
func (s *Service) Name() string {
	return "webhook"
}

// Notify queues a delivery of event to every configured endpoint.
// Delivery happens in the background; Wait blocks until it finishes.
func (s *Service) Notify(ctx context.Context, event models.SubmissionEvent) error {
	if len(s.urls) == 0 {
		return nil
	}

	timestamp := event.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	payload := models.WebhookEvent{
		Event:     event.Event,
		Timestamp: timestamp,
		Data:      event,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for _, url := range s.urls {
		delivery := &models.WebhookDelivery{
			ID:        uuid.New().String(),
			URL:       url,
			Event:     event.Event,
			Status:    models.WebhookDeliveryStatusPending,
			CreatedAt: time.Now().UTC(),
		}

		if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
			s.logger.WarnWithErr("Failed to create delivery", err)
			continue
		}

		s.wg.Add(1)
		go func(d *models.WebhookDelivery) {
			defer s.wg.Done()
			s.deliverWithRetry(d, payloadBytes)
		}(delivery)
	}

	return nil
}

// Wait blocks until every queued delivery has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close abandons pending retries and waits for in-flight deliveries
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Deliveries returns the most recent delivery attempts
func (s *Service) Deliveries(ctx context.Context, limit int) ([]models.WebhookDelivery, error) {
	return s.repo.ListDeliveries(ctx, limit)
}

func (s *Service) deliverWithRetry(delivery *models.WebhookDelivery, payload []byte) {
	for {
		statusCode, err := s.deliver(s.ctx, delivery, payload)
		delivery.StatusCode = statusCode
		if err == nil {
			now := time.Now().UTC()
			delivery.Status = models.WebhookDeliveryStatusDelivered
			delivery.CompletedAt = &now
			s.update(delivery)
			metrics.RecordNotification("webhook", "delivered")
			return
		}

		s.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"url":         delivery.URL,
			"attempt":     delivery.RetryCount + 1,
		}).WarnWithErr("Webhook delivery failed", err)

		if delivery.RetryCount >= len(s.retryDelays) {
			s.markFailed(delivery)
			return
		}
		delay := s.retryDelays[delivery.RetryCount]
		delivery.RetryCount++
		s.update(delivery)

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			s.markFailed(delivery)
			return
		case <-timer.C:
		}
	}
}

func (s *Service) markFailed(delivery *models.WebhookDelivery) {
	now := time.Now().UTC()
	delivery.Status = models.WebhookDeliveryStatusFailed
	delivery.CompletedAt = &now
	s.update(delivery)
	metrics.RecordNotification("webhook", "failed")
}

func (s *Service) update(delivery *models.WebhookDelivery) {
	if err := s.repo.UpdateDelivery(context.Background(), delivery); err != nil {
		s.logger.WarnWithErr("Failed to update delivery", err)
	}
}

// deliver attempts to deliver a webhook once
func (s *Service) deliver(ctx context.Context, delivery *models.WebhookDelivery, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Subcatalog-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	// Add HMAC signature if secret is configured
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", generateSignature(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a X-Webhook-Signature header value
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(generateSignature(payload, secret)), []byte(signature))
}

// MemoryRepository keeps the last N deliveries in memory
type MemoryRepository struct {
	mu         sync.Mutex
	limit      int
	deliveries []models.WebhookDelivery
}

// NewMemoryRepository creates a repository bounded to limit entries
func NewMemoryRepository(limit int) *MemoryRepository {
	if limit <= 0 {
		limit = 200
	}
	return &MemoryRepository{limit: limit}
}

func (m *MemoryRepository) CreateDelivery(_ context.Context, delivery *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, *delivery)
	if over := len(m.deliveries) - m.limit; over > 0 {
		m.deliveries = append([]models.WebhookDelivery(nil), m.deliveries[over:]...)
	}
	return nil
}

func (m *MemoryRepository) UpdateDelivery(_ context.Context, delivery *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.deliveries {
		if m.deliveries[i].ID == delivery.ID {
			m.deliveries[i] = *delivery
			return nil
		}
	}
	return nil
}

// ListDeliveries returns up to limit deliveries, newest first
func (m *MemoryRepository) ListDeliveries(_ context.Context, limit int) ([]models.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.deliveries) {
		limit = len(m.deliveries)
	}
	out := make([]models.WebhookDelivery, 0, limit)
	for i := len(m.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.deliveries[i])
	}
	return out, nil
}
