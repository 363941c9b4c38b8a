// Package updates checks the release feed for newer application builds.
// Feed requests go through the worker's proxy and the last payload is
// cached there so the notice survives restarts while offline.
package updates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"captiondesk/internal/events"
)

// ErrNoScheduler is returned by Schedule when the checker has no cron.
var ErrNoScheduler = errors.New("update scheduler is not configured")

// API is the worker surface used for update checks.
type API interface {
	CachedUpdate(ctx context.Context, project string) (json.RawMessage, error)
	StoreUpdate(ctx context.Context, project string, payload json.RawMessage) error
	FetchUpdate(ctx context.Context, target string) (json.RawMessage, error)
}

// Options configures a Checker.
type Options struct {
	CheckURL string
	Project  string
	Version  string
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// Checker loads cached update info and refreshes it from the feed.
type Checker struct {
	api   API
	cron  *cron.Cron
	opts  Options
	log   zerolog.Logger
	group singleflight.Group

	mu     sync.RWMutex
	latest *Info
}

// NewChecker creates a checker. sched may be nil when periodic checks are
// not wanted.
func NewChecker(api API, sched *cron.Cron, opts Options) *Checker {
	if strings.TrimSpace(opts.Project) == "" {
		opts.Project = "captiondesk"
	}
	return &Checker{
		api:  api,
		cron: sched,
		opts: opts,
		log:  opts.Logger.With().Str("component", "updates").Logger(),
	}
}

// Latest returns the last update notice, or nil.
func (c *Checker) Latest() *Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Check loads the cached payload, fetches the feed, stores the fresh
// payload and reloads it. Concurrent calls share one run.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	if strings.TrimSpace(c.opts.CheckURL) == "" {
		c.log.Debug().Msg("update check url not configured, skipping")
		return nil, nil
	}
	v, err, _ := c.group.Do("check", func() (any, error) {
		return c.check(ctx)
	})
	info, _ := v.(*Info)
	return info, err
}

func (c *Checker) check(ctx context.Context) (*Info, error) {
	c.loadCached(ctx)

	target, err := c.feedURL()
	if err != nil {
		return c.Latest(), err
	}
	payload, err := c.api.FetchUpdate(ctx, target)
	if err != nil {
		c.log.Warn().Err(err).Str("url", target).Msg("fetch update feed")
		return c.Latest(), fmt.Errorf("fetch update feed: %w", err)
	}
	if isEmptyPayload(payload) {
		return c.Latest(), nil
	}

	if err := c.api.StoreUpdate(ctx, c.opts.Project, payload); err != nil {
		c.log.Warn().Err(err).Msg("store update cache")
		c.apply(payload)
		return c.Latest(), nil
	}
	c.loadCached(ctx)
	return c.Latest(), nil
}

func (c *Checker) loadCached(ctx context.Context) {
	payload, err := c.api.CachedUpdate(ctx, c.opts.Project)
	if err != nil {
		c.log.Debug().Err(err).Msg("no cached update")
		return
	}
	c.apply(payload)
}

// apply records payload when it describes an update and announces it.
func (c *Checker) apply(payload json.RawMessage) {
	info := BuildInfo(payload, c.opts.Version, c.opts.Project)
	if info == nil {
		return
	}
	c.mu.Lock()
	c.latest = info
	c.mu.Unlock()

	c.log.Info().
		Str("latest", info.LatestVersion).
		Str("current", info.CurrentVersion).
		Bool("force", info.ForceUpdate).
		Msg("update available")
	c.opts.Bus.Publish(events.Event{Topic: events.TopicUpdate, Message: info.LatestVersion, Payload: info})
}

func (c *Checker) feedURL() (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.opts.CheckURL))
	if err != nil {
		return "", fmt.Errorf("parse update url: %w", err)
	}
	q := u.Query()
	if c.opts.Project != "" {
		q.Set("project", c.opts.Project)
	}
	if c.opts.Version != "" {
		q.Set("current", c.opts.Version)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Schedule registers a periodic check on the cron using a standard
// five-field expression.
func (c *Checker) Schedule(ctx context.Context, expr string) error {
	if c.cron == nil {
		return ErrNoScheduler
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid update schedule %q: %w", expr, err)
	}
	_, err := c.cron.AddFunc(expr, func() {
		if _, err := c.Check(ctx); err != nil {
			c.log.Debug().Err(err).Msg("scheduled update check")
		}
	})
	return err
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
