package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"wristrelay/models"
)

const (
	// NoResponseText replaces an empty or unreadable response body.
	NoResponseText = "no response"
	// SendFailedText is reported when the request could not be completed.
	SendFailedText = "Error sending data"
)

// State is the lifecycle of one relay request.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateDelivered        State = "delivered"
	StateFailed           State = "failed"
)

// Result describes a relay request at one point of its lifecycle.
type Result struct {
	RequestID string
	Message   string
	State     State
	// Text is what the operator sees: the response body, NoResponseText or SendFailedText.
	Text string
	Err  error
}

// Observer is told about every relay state change.
type Observer interface {
	OnRelayResult(result Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(result Result)

// OnRelayResult calls f(result).
func (f ObserverFunc) OnRelayResult(result Result) {
	f(result)
}

// HTTPRelay forwards message text to an HTTP endpoint with a GET request.
type HTTPRelay struct {
	baseURL  string
	client   *http.Client
	observer Observer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	latest string
}

// Option configures an HTTPRelay.
type Option func(*HTTPRelay)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(r *HTTPRelay) {
		r.client = client
	}
}

// WithObserver sets the result observer.
func WithObserver(observer Observer) Option {
	return func(r *HTTPRelay) {
		r.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *HTTPRelay) {
		r.logger = logger
	}
}

// NewHTTPRelay returns an idle relay targeting baseURL.
func NewHTTPRelay(baseURL string, opts ...Option) *HTTPRelay {
	r := &HTTPRelay{
		baseURL: baseURL,
		client:  http.DefaultClient,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "relay")
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// State returns the state of the most recently started request. Transitions of
// older requests that are still in flight do not change it.
func (r *HTTPRelay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleMessage relays event.Data in the background. It is meant to be
// registered on a Forwarder.
func (r *HTTPRelay) HandleMessage(event models.MessageEvent) {
	message := string(event.Data)
	requestID := uuid.NewString()
	r.logger.Info("relaying message", "request_id", requestID, "node_id", event.SourceNodeID, "path", event.Path)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.forward(r.ctx, requestID, message)
	}()
}

// Forward relays message and blocks until the request completes.
func (r *HTTPRelay) Forward(ctx context.Context, message string) Result {
	return r.forward(ctx, uuid.NewString(), message)
}

// Wait blocks until every background request has reported.
func (r *HTTPRelay) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight background requests and waits for them to report.
func (r *HTTPRelay) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *HTTPRelay) forward(ctx context.Context, requestID, message string) Result {
	r.mu.Lock()
	r.latest = requestID
	r.mu.Unlock()
	r.transition(Result{RequestID: requestID, Message: message, State: StateAwaitingResponse})

	body, err := r.get(ctx, BuildURL(r.baseURL, message))
	if err != nil {
		r.logger.Error("relay request failed", "request_id", requestID, "error", err)
		return r.transition(Result{
			RequestID: requestID,
			Message:   message,
			State:     StateFailed,
			Text:      SendFailedText,
			Err:       err,
		})
	}

	text := body
	if text == "" {
		text = NoResponseText
	}
	r.logger.Info("relay response", "request_id", requestID, "body", body)
	return r.transition(Result{
		RequestID: requestID,
		Message:   message,
		State:     StateDelivered,
		Text:      text,
	})
}

// get issues the request. The status code is not inspected; any body the
// server returns is the result.
func (r *HTTPRelay) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Warn("read relay response", "status", resp.StatusCode, "error", err)
		return "", nil
	}
	return string(body), nil
}

func (r *HTTPRelay) transition(result Result) Result {
	r.mu.Lock()
	if result.RequestID == r.latest {
		r.state = result.State
	}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer.OnRelayResult(result)
	}
	return result
}
