package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/registry"
)

// DefaultTimeout bounds connect, emit and the optional reply wait.
const DefaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the socketio_emit handler.
type Input struct {
	URL                string `flow:"url"`
	Namespace          string `flow:"namespace,optional"`
	Event              string `flow:"event"`
	Data               any    `flow:"data,optional"`
	ReplyEvent         string `flow:"reply_event,optional"`
	Timeout            string `flow:"timeout,optional"`
	InsecureSkipVerify bool   `flow:"insecure_skip_verify,optional"`
}

// OnEmit connects to a Socket.IO server, emits one event and, when
// reply_event is set, waits for that event and writes its payload to the
// output writer as JSON.
func OnEmit(ctx context.Context, input *Input) error {
	logger := ctxlog.FromContext(ctx).With("handler", "socketio_emit", "url", input.URL, "event", input.Event)
	logger.Debug("Handler started.")
	defer logger.Debug("Handler finished.")

	if input.Event == "" {
		return fmt.Errorf("event must not be empty")
	}

	timeout := DefaultTimeout
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		timeout = d
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("failed to parse URL: %q has no scheme or host", input.URL)
	}

	namespace := input.Namespace
	if namespace == "" {
		namespace = "/"
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host), opts)
	io := manager.Socket(namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	var connected atomic.Bool
	done := make(chan error, 1)
	complete := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		connected.Store(true)
		logger.Info("Connected.", "namespace", namespace, "sid", io.Id())
		io.Emit(input.Event, input.Data)
		if input.ReplyEvent == "" {
			complete(nil)
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				complete(fmt.Errorf("connect: %w", err))
				return
			}
		}
		complete(fmt.Errorf("connect: %v", errs))
	})

	if input.ReplyEvent != "" {
		io.On(types.EventName(input.ReplyEvent), func(data ...any) {
			var reply any
			if len(data) > 0 {
				reply = data[0]
			}
			encoded, err := json.Marshal(reply)
			if err != nil {
				complete(fmt.Errorf("encode reply: %w", err))
				return
			}
			_, err = fmt.Fprintln(registry.Output(ctx), string(encoded))
			complete(err)
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if connected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", input.ReplyEvent)
		}
		return fmt.Errorf("timed out while waiting for initial connection")
	case err := <-done:
		return err
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("socketio_emit", registry.Typed(OnEmit))
}
