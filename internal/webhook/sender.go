package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/orrn/wishprint/internal/config"
	"github.com/orrn/wishprint/internal/core"
	"go.uber.org/zap"
)

const (
	headerSignature = "X-Wishprint-Signature"
	headerEvent     = "X-Wishprint-Event"
)

type Payload struct {
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Data      core.JobEvent `json:"data"`
	Signature string        `json:"signature,omitempty"`
}

type task struct {
	url     string
	payload *Payload
	attempt int
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http error: %d", e.code)
}

// Sender posts job events to every configured URL from a small worker pool.
// Events are dropped when the queue is full.
type Sender struct {
	urls       []string
	secret     string
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	workers    int
	queue      chan *task
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     *zap.Logger
}

func NewSender(cfg config.WebhooksConfig, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Sender{
		urls:       cfg.URLs,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		workers:    cfg.WorkerCount,
		queue:      make(chan *task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// SendJobEvent implements core.WebhookSender.
func (s *Sender) SendJobEvent(event core.JobEvent) {
	for _, url := range s.urls {
		t := &task{
			url: url,
			payload: &Payload{
				Event:     event.Event,
				Timestamp: time.Now(),
				Data:      event,
			},
		}

		select {
		case s.queue <- t:
		default:
			s.logger.Warn("webhook queue full, dropping event",
				zap.String("url", url),
				zap.String("event", event.Event),
				zap.String("order", event.OrderName))
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.logger.Error("webhook delivery failed",
					zap.Int("worker", id),
					zap.String("url", t.url),
					zap.String("event", t.payload.Event),
					zap.Int("attempts", t.attempt),
					zap.Error(err))
			}
		}
	}
}

// sendWithRetry makes up to retryCount attempts. A retryCount of 0 still
// delivers once.
func (s *Sender) sendWithRetry(t *task) error {
	attempts := max(s.retryCount, 1)

	var lastErr error
	for t.attempt < attempts {
		t.attempt++

		err := s.send(t.url, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			return err
		}

		if t.attempt < attempts {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			s.logger.Debug("retrying webhook",
				zap.String("url", t.url),
				zap.Int("attempt", t.attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested: %w", lastErr)
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) send(url string, payload *Payload) error {
	data, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	if s.secret != "" {
		payload.Signature = Sign(data, s.secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, payload.Event)
	if payload.Signature != "" {
		req.Header.Set(headerSignature, payload.Signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of the event's JSON data.
func Sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
