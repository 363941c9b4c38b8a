package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/domain"
)

func newFakeWorker(t *testing.T, register func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestURLDownloadTriad(t *testing.T) {
	var startBody map[string]string
	var cancelled string
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.POST("/import/url/start", func(ctx *gin.Context) {
			require.NoError(t, ctx.ShouldBindJSON(&startBody))
			ctx.JSON(http.StatusOK, gin.H{"download_id": "dl-1", "status": "queued"})
		})
		r.GET("/import/url/:id", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"download_id":      ctx.Param("id"),
				"status":           "completed",
				"progress":         100,
				"file":             gin.H{"path": "/tmp/a.mp4", "name": "a.mp4", "size": 42},
				"source":           gin.H{"title": "A clip"},
				"downloaded_bytes": 42,
			})
		})
		r.POST("/import/url/:id/cancel", func(ctx *gin.Context) {
			cancelled = ctx.Param("id")
			ctx.JSON(http.StatusOK, gin.H{"status": "cancelled"})
		})
	})
	api := c.URLDownloads()
	ctx := context.Background()

	started, err := api.Start(ctx, "http://x/a.mp4", "/downloads")
	require.NoError(t, err)
	assert.Equal(t, "dl-1", started.DownloadID)
	assert.Equal(t, domain.TaskStatusQueued, started.TaskStatus())
	assert.Equal(t, map[string]string{"url": "http://x/a.mp4", "download_dir": "/downloads"}, startBody)

	status, err := api.Get(ctx, "dl-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, status.TaskStatus())
	assert.True(t, status.File.Valid())
	assert.Equal(t, "A clip", status.Title())
	require.NotNil(t, status.DownloadedBytes)
	assert.Equal(t, int64(42), *status.DownloadedBytes)

	_, err = api.Cancel(ctx, "dl-1")
	require.NoError(t, err)
	assert.Equal(t, "dl-1", cancelled)
}

func TestAPIErrorCarriesWorkerMessage(t *testing.T) {
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.POST("/import/youtube/start", func(ctx *gin.Context) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported link"})
		})
		r.GET("/import/youtube/:id", func(ctx *gin.Context) {
			ctx.Status(http.StatusNotFound)
		})
	})

	_, err := c.YoutubeImports().Start(context.Background(), "nope", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Unsupported link", apiErr.Error())

	_, err = c.YoutubeImports().Get(context.Background(), "gone")
	assert.True(t, IsNotFound(err))
}

func TestModelDownloadReadyCountsAsCompleted(t *testing.T) {
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.GET("/models/whisper/status", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ready": false, "expected_path": "/m/base.bin"})
		})
		r.POST("/models/whisper/download", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		})
	})

	st, err := c.ModelStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Ready)
	assert.Equal(t, "/m/base.bin", st.ExpectedPath)

	dl, err := c.StartModelDownload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, dl.TaskStatus())
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	var form map[string]string
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.POST("/transcribe", func(ctx *gin.Context) {
			form = map[string]string{
				"job_id":    ctx.PostForm("job_id"),
				"file_path": ctx.PostForm("file_path"),
				"device":    ctx.PostForm("device"),
				"language":  ctx.PostForm("language"),
			}
			ctx.JSON(http.StatusOK, gin.H{"job_id": ctx.PostForm("job_id"), "status": "queued"})
		})
	})

	resp, err := c.Transcribe(context.Background(), TranscribeRequest{
		JobID:    "job-1",
		FilePath: "/tmp/a.mp4",
		Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, map[string]string{
		"job_id":    "job-1",
		"file_path": "/tmp/a.mp4",
		"device":    "auto",
		"language":  "en",
	}, form)
}

func TestUpsertRecordRequiresAcknowledgement(t *testing.T) {
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.POST("/api/job/record", func(ctx *gin.Context) {
			var rec JobRecord
			require.NoError(t, ctx.ShouldBindJSON(&rec))
			if rec.JobID == "bad" {
				ctx.JSON(http.StatusOK, gin.H{"success": false, "error": "disk full"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		})
	})

	require.NoError(t, c.UpsertRecord(context.Background(), JobRecord{JobID: "ok"}))
	err := c.UpsertRecord(context.Background(), JobRecord{JobID: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExportReturnsContent(t *testing.T) {
	c := newFakeWorker(t, func(r *gin.Engine) {
		r.POST("/export/srt", func(ctx *gin.Context) {
			var body struct {
				Segments       []map[string]any `json:"segments"`
				ExportLanguage string           `json:"export_language"`
			}
			require.NoError(t, ctx.ShouldBindJSON(&body))
			assert.Len(t, body.Segments, 1)
			assert.Equal(t, "en", body.ExportLanguage)
			ctx.JSON(http.StatusOK, gin.H{"success": true, "content": "1\n00:00:00,000 --> 00:00:01,000\nhi\n"})
		})
	})

	out, err := c.Export(context.Background(), ExportSRT, []domain.Segment{{ID: 1, End: 1, Text: "hi"}}, "en")
	require.NoError(t, err)
	assert.Contains(t, out, "hi")
}
