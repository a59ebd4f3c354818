package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/pkg/options"
)

// relayClient reads the relay's JSON API.
type relayClient struct {
	server string
	http   *http.Client
}

// clientOptions are the flags shared by the commands that talk to a relay.
type clientOptions struct {
	Server  string
	Timeout time.Duration
}

func newClientOptions() *clientOptions {
	return &clientOptions{
		Server:  defaultServer,
		Timeout: options.NewHttpOptions().Timeout,
	}
}

func (o *clientOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server, "server", o.Server, "Base URL of the relay HTTP API.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout for a single API request.")
}

func (o *clientOptions) client() *relayClient {
	return &relayClient{
		server: strings.TrimRight(o.Server, "/"),
		http:   &http.Client{Timeout: o.Timeout},
	}
}

func (c *relayClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var msg core.ErrorMessage
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
			return fmt.Errorf("request %s: %s: %s", path, resp.Status, msg.Message)
		}
		return fmt.Errorf("request %s: %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
