package siakad

import (
	"context"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"warkrs/internal/config"
	"warkrs/internal/logbus"
	"warkrs/internal/model"
)

// Client is the thin authenticated HTTP layer. It attaches the static
// session cookies to every request and enforces the configured timeout plus
// a hard request-rate ceiling. It never retries and never interprets
// response bodies; retry policy and content handling live above it.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	bus     *logbus.Bus
}

func NewClient(cookies model.SessionCookies, settings config.Settings, bus *logbus.Bus) *Client {
	http := resty.New().
		SetTimeout(settings.Timeout()).
		SetHeader("User-Agent", settings.UserAgent).
		SetCookies(cookies.ToHTTP())

	c := &Client{
		http:    http,
		limiter: rate.NewLimiter(rate.Limit(settings.MaxRequestsPerSec), 1),
		bus:     bus,
	}

	http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if c.bus != nil {
			c.bus.Log("debug", "http request", map[string]any{
				"method": req.Method,
				"url":    req.URL,
			})
		}
		return nil
	})
	return c
}

func (c *Client) Get(ctx context.Context, url string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).Get(url)
}

func (c *Client) PostForm(ctx context.Context, url string, form map[string]string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetFormData(form).Post(url)
}
