package updates

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/events"
)

type fakeFeed struct {
	mu       sync.Mutex
	cache    json.RawMessage
	feed     json.RawMessage
	fetchErr error
	storeErr error
	targets  []string
}

func (f *fakeFeed) CachedUpdate(context.Context, string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cache == nil {
		return nil, errors.New("not found")
	}
	return f.cache, nil
}

func (f *fakeFeed) StoreUpdate(_ context.Context, _ string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.cache = payload
	return nil
}

func (f *fakeFeed) FetchUpdate(_ context.Context, target string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return f.feed, f.fetchErr
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, CompareVersions("1.10.0", "1.9.9"))
	assert.Equal(t, 0, CompareVersions("v1.2", "1.2.0"))
	assert.Equal(t, -1, CompareVersions("1.2.0-beta", "1.2.1"))
	assert.Equal(t, 0, CompareVersions("", ""))
}

func TestBuildInfo(t *testing.T) {
	info := BuildInfo(json.RawMessage(`{"latest_version":"2.0.0","url":"https://x/dl","notes":"fixes"}`), "1.5.0", "captiondesk")
	require.NotNil(t, info)
	assert.Equal(t, "2.0.0", info.LatestVersion)
	assert.Equal(t, "https://x/dl", info.DownloadURL)
	assert.Equal(t, "fixes", info.ReleaseNotes)
	assert.Equal(t, "captiondesk", info.Project)
	require.NotNil(t, info.UpdateAvailable)
	assert.True(t, *info.UpdateAvailable)
	assert.False(t, info.ForceUpdate)

	assert.Nil(t, BuildInfo(json.RawMessage(`{"version":"1.5.0"}`), "1.5.0", "p"))
	assert.Nil(t, BuildInfo(json.RawMessage(`{"url":"x"}`), "1.0.0", "p"))
	assert.Nil(t, BuildInfo(json.RawMessage(`[1,2]`), "1.0.0", "p"))

	forced := BuildInfo(json.RawMessage(`{"latestVersion":"1.5.0","minSupportedVersion":"1.4.0"}`), "1.3.0", "p")
	require.NotNil(t, forced)
	assert.True(t, forced.ForceUpdate)

	noCurrent := BuildInfo(json.RawMessage(`{"latest":"3.0","updateAvailable":true}`), "", "p")
	require.NotNil(t, noCurrent)
	assert.True(t, *noCurrent.UpdateAvailable)
}

func TestCheckStoresAndPublishes(t *testing.T) {
	bus := events.NewBus(10)
	feed := &fakeFeed{feed: json.RawMessage(`{"latestVersion":"1.1.0"}`)}
	c := NewChecker(feed, nil, Options{
		CheckURL: "https://updates.example.com/feed?channel=stable",
		Project:  "captiondesk",
		Version:  "1.0.0",
		Bus:      bus,
		Logger:   zerolog.Nop(),
	})

	info, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "1.1.0", info.LatestVersion)
	assert.Equal(t, info, c.Latest())
	assert.JSONEq(t, `{"latestVersion":"1.1.0"}`, string(feed.cache))

	require.Len(t, feed.targets, 1)
	u, err := url.Parse(feed.targets[0])
	require.NoError(t, err)
	assert.Equal(t, "stable", u.Query().Get("channel"))
	assert.Equal(t, "captiondesk", u.Query().Get("project"))
	assert.Equal(t, "1.0.0", u.Query().Get("current"))

	published := bus.SinceTopic(events.TopicUpdate, 0)
	require.Len(t, published, 1)
	assert.Equal(t, "1.1.0", published[0].Message)
}

func TestCheckUsesCacheWhenFeedFails(t *testing.T) {
	feed := &fakeFeed{
		cache:    json.RawMessage(`{"latestVersion":"1.2.0"}`),
		fetchErr: errors.New("offline"),
	}
	c := NewChecker(feed, nil, Options{CheckURL: "https://u/feed", Version: "1.0.0", Logger: zerolog.Nop()})

	info, err := c.Check(context.Background())
	require.Error(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "1.2.0", info.LatestVersion)
}

func TestCheckAppliesPayloadWhenCacheWriteFails(t *testing.T) {
	feed := &fakeFeed{feed: json.RawMessage(`{"latestVersion":"2.0.0"}`), storeErr: errors.New("readonly")}
	c := NewChecker(feed, nil, Options{CheckURL: "https://u/feed", Version: "1.0.0", Logger: zerolog.Nop()})

	info, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "2.0.0", info.LatestVersion)
}

func TestCheckSkipsWithoutURL(t *testing.T) {
	feed := &fakeFeed{}
	c := NewChecker(feed, nil, Options{Logger: zerolog.Nop()})

	info, err := c.Check(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, info)
	assert.Empty(t, feed.targets)
}

func TestSchedule(t *testing.T) {
	c := NewChecker(&fakeFeed{}, nil, Options{Logger: zerolog.Nop()})
	assert.ErrorIs(t, c.Schedule(context.Background(), "0 * * * *"), ErrNoScheduler)

	sched := cron.New()
	c = NewChecker(&fakeFeed{}, sched, Options{Logger: zerolog.Nop()})
	assert.Error(t, c.Schedule(context.Background(), "not a schedule"))
	require.NoError(t, c.Schedule(context.Background(), "0 */6 * * *"))
	assert.Len(t, sched.Entries(), 1)
}
