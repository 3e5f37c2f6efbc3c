package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request. http.DefaultClient when nil.
	Client *http.Client
}

// Input defines the arguments for the http_request handler.
type Input struct {
	URL            string            `flow:"url"`
	Method         string            `flow:"method,optional"`
	Headers        map[string]string `flow:"headers,optional"`
	Body           string            `flow:"body,optional"`
	ExpectedStatus int               `flow:"expected_status,optional"`
	Timeout        string            `flow:"timeout,optional"`
	PrintBody      bool              `flow:"print_body,optional"`
}

// Handler returns the http_request handler bound to client.
func Handler(client *http.Client) func(context.Context, *Input) error {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, input *Input) error {
		method := input.Method
		if method == "" {
			method = http.MethodGet
		}
		logger := ctxlog.FromContext(ctx).With("method", method, "url", input.URL)

		if input.Timeout != "" {
			d, err := time.ParseDuration(input.Timeout)
			if err != nil {
				return fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		var body io.Reader
		if input.Body != "" {
			body = strings.NewReader(input.Body)
		}
		req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), input.URL, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range input.Headers {
			req.Header.Set(k, v)
		}

		logger.Debug("Making HTTP request.")
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		logger.Info("Received HTTP response.", "status", resp.Status, "size", humanize.Bytes(uint64(len(data))))

		if input.ExpectedStatus != 0 && resp.StatusCode != input.ExpectedStatus {
			return fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, input.ExpectedStatus)
		}
		if input.PrintBody {
			if _, err := fmt.Fprintln(registry.Output(ctx), string(data)); err != nil {
				return err
			}
		}
		return nil
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("http_request", registry.Typed(Handler(m.Client)))
}
