package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/engagement"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/services"
)

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func pendingJob(t *testing.T, jobs *fakeJobRepo, videoID uuid.UUID, jobType domain.JobType) *domain.Job {
	t.Helper()
	job := &domain.Job{ID: uuid.New(), VideoID: videoID, JobType: jobType, Status: domain.JobPending}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func mustMerge(t *testing.T, updates map[string]any) []byte {
	t.Helper()
	blob, err := domain.MergeAnalysisData(nil, updates)
	if err != nil {
		t.Fatalf("merge analysis data: %v", err)
	}
	return blob
}

func TestIngestStage_SkipsWhenAlreadyIngested(t *testing.T) {
	dir := t.TempDir()
	audioPath := writeTempFile(t, dir, "audio.wav")
	dur, fps := 120.0, 30.0

	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	videoID := uuid.New()
	_ = videos.Create(context.Background(), &domain.Video{
		ID:              videoID,
		OriginalPath:    filepath.Join(dir, "video.mp4"),
		AudioPath:       &audioPath,
		DurationSeconds: &dur,
		FPS:             &fps,
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeIngest)

	tools := &fakeTools{}
	stage := NewIngestStage(videos, jobs, tools, dir, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tools.probeCalls != 0 || tools.extractCalls != 0 {
		t.Fatalf("idempotent run must not touch tools: probe=%d extract=%d", tools.probeCalls, tools.extractCalls)
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobSuccess || got.Progress != 1 {
		t.Fatalf("expected SUCCESS with progress 1, got %s/%v", got.Status, got.Progress)
	}
}

func TestIngestStage_ProbesAndExtracts(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeTempFile(t, dir, "video.mp4")
	dur, fps := 95.5, 24.0

	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	videoID := uuid.New()
	_ = videos.Create(context.Background(), &domain.Video{ID: videoID, OriginalPath: videoPath})
	job := pendingJob(t, jobs, videoID, domain.JobTypeIngest)

	tools := &fakeTools{probeResult: &localmedia.ProbeResult{DurationSeconds: &dur, FPS: &fps}}
	stage := NewIngestStage(videos, jobs, tools, dir, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	video, _ := videos.GetByID(context.Background(), videoID)
	if video.AudioPath == nil || *video.AudioPath != filepath.Join(dir, videoID.String()+".wav") {
		t.Fatalf("audio path not recorded: %v", video.AudioPath)
	}
	if video.DurationSeconds == nil || *video.DurationSeconds != dur {
		t.Fatalf("duration not recorded: %v", video.DurationSeconds)
	}
	if tools.probeCalls != 1 || tools.extractCalls != 1 {
		t.Fatalf("expected one probe and one extract, got %d/%d", tools.probeCalls, tools.extractCalls)
	}
}

func TestTranscribeStage_SkipsWhenTranscriptPresent(t *testing.T) {
	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	videoID := uuid.New()
	_ = videos.Create(context.Background(), &domain.Video{
		ID: videoID,
		AnalysisData: mustMerge(t, map[string]any{
			domain.AnalysisKeyTranscript: []domain.TranscriptSegment{{Start: 0, End: 2, Text: "hello"}},
		}),
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeTranscription)

	tr := &fakeTranscriber{}
	stage := NewTranscribeStage(videos, jobs, tr, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tr.calls != 0 {
		t.Fatalf("transcriber should not run when a transcript exists, ran %d times", tr.calls)
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
}

func TestTranscribeStage_StoresSegmentsAndLanguage(t *testing.T) {
	dir := t.TempDir()
	audioPath := writeTempFile(t, dir, "audio.wav")

	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	videoID := uuid.New()
	_ = videos.Create(context.Background(), &domain.Video{ID: videoID, AudioPath: &audioPath})
	job := pendingJob(t, jobs, videoID, domain.JobTypeTranscription)

	tr := &fakeTranscriber{result: &services.TranscriptResult{
		Language: "en",
		Segments: []domain.TranscriptSegment{{Start: 0, End: 3.5, Text: "first words"}},
	}}
	stage := NewTranscribeStage(videos, jobs, tr, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.ClipSettings{Device: "cuda"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tr.device != "cuda" {
		t.Fatalf("device preference not threaded through, got %q", tr.device)
	}
	video, _ := videos.GetByID(context.Background(), videoID)
	segs := domain.TranscriptFrom(video.AnalysisData)
	if len(segs) != 1 || segs[0].Text != "first words" {
		t.Fatalf("transcript not stored: %+v", segs)
	}
	var lang string
	if !domain.AnalysisDataKey(video.AnalysisData, domain.AnalysisKeyTranscriptLanguage, &lang) || lang != "en" {
		t.Fatalf("language not stored, got %q", lang)
	}
}

func TestAnalyzeStage_CreatesRankedClips(t *testing.T) {
	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	clips := newFakeClipRepo()
	videoID := uuid.New()
	audioPath := "/data/audio/a.wav"
	dur := 120.0
	_ = videos.Create(context.Background(), &domain.Video{
		ID:              videoID,
		OriginalPath:    "/data/videos/a.mp4",
		AudioPath:       &audioPath,
		DurationSeconds: &dur,
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeAnalysis)

	energies := make([]float64, 120)
	for i := range energies {
		energies[i] = 1.0
	}
	tools := &fakeTools{energies: energies}
	scenes := &fakeSceneDetector{times: []float64{30, 60, 90}}

	stage := NewAnalyzeStage(videos, jobs, clips, tools, scenes, nil, t.TempDir(), testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	list, _ := clips.ListByVideo(context.Background(), videoID)
	if len(list) == 0 {
		t.Fatal("expected clip rows created")
	}
	for i, c := range list {
		if c.Rank != i+1 {
			t.Fatalf("ranks not dense: clip %d has rank %d", i, c.Rank)
		}
		if c.OutputPath != nil {
			t.Fatal("analysis must not set output paths")
		}
	}

	video, _ := videos.GetByID(context.Background(), videoID)
	var heatmap []engagement.ScoredSegment
	if !domain.AnalysisDataKey(video.AnalysisData, domain.AnalysisKeyHeatmap, &heatmap) || len(heatmap) != 120 {
		t.Fatalf("heatmap missing or wrong length: %d", len(heatmap))
	}
	var sceneTimes []float64
	if !domain.AnalysisDataKey(video.AnalysisData, domain.AnalysisKeySceneChanges, &sceneTimes) || len(sceneTimes) != 3 {
		t.Fatalf("scene changes not stored: %v", sceneTimes)
	}

	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobSuccess || got.Progress != 1 {
		t.Fatalf("expected SUCCESS with progress 1, got %s/%v", got.Status, got.Progress)
	}
}

func TestAnalyzeStage_SkipsWhenClipsAndHeatmapExist(t *testing.T) {
	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	clips := newFakeClipRepo()
	videoID := uuid.New()
	_ = clips.CreateBatch(context.Background(), []*domain.Clip{
		{ID: uuid.New(), VideoID: videoID, StartTime: 0, EndTime: 20, Rank: 1},
	})
	_ = videos.Create(context.Background(), &domain.Video{
		ID: videoID,
		AnalysisData: mustMerge(t, map[string]any{
			domain.AnalysisKeyHeatmap: []engagement.ScoredSegment{{Start: 0, End: 1, EngagementScore: 5}},
		}),
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeAnalysis)

	tools := &fakeTools{}
	stage := NewAnalyzeStage(videos, jobs, clips, tools, &fakeSceneDetector{}, nil, t.TempDir(), testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tools.energyCalls != 0 {
		t.Fatalf("idempotent run must not recompute energy, ran %d times", tools.energyCalls)
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
}

func newRenderFixture(t *testing.T) (*config.Config, *fakeVideoRepo, *fakeJobRepo, *fakeClipRepo, uuid.UUID) {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	videos := newFakeVideoRepo()
	jobs := newFakeJobRepo()
	clips := newFakeClipRepo()
	videoID := uuid.New()
	_ = videos.Create(context.Background(), &domain.Video{
		ID:           videoID,
		Title:        "Test Video",
		OriginalPath: "/data/videos/src.mp4",
	})
	return cfg, videos, jobs, clips, videoID
}

func renderServices(t *testing.T) (services.Captioner, services.ClipNotifier) {
	t.Helper()
	log := testLogger(t)
	return services.NewCaptioner(nil, log), services.NewClipNotifier(nil, nil, config.UploadConfig{}, log)
}

func TestRenderStage_RendersInRankOrder(t *testing.T) {
	cfg, videos, jobs, clips, videoID := newRenderFixture(t)
	_ = clips.CreateBatch(context.Background(), []*domain.Clip{
		{ID: uuid.New(), VideoID: videoID, StartTime: 30, EndTime: 50, EngagementScore: 9, Rank: 1},
		{ID: uuid.New(), VideoID: videoID, StartTime: 80, EndTime: 100, EngagementScore: 8, Rank: 2},
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeGenerateClips)

	tools := &fakeTools{}
	captioner, notifier := renderServices(t)
	stage := NewRenderStage(cfg, videos, jobs, clips, tools, captioner, notifier, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tools.renderCalls != 2 {
		t.Fatalf("expected 2 renders, got %d", tools.renderCalls)
	}
	if tools.rendered[0].StartTime != 30 || tools.rendered[1].StartTime != 80 {
		t.Fatalf("clips rendered out of rank order: %v then %v", tools.rendered[0].StartTime, tools.rendered[1].StartTime)
	}
	list, _ := clips.ListByVideo(context.Background(), videoID)
	for _, c := range list {
		if c.OutputPath == nil {
			t.Fatalf("clip rank %d missing output path", c.Rank)
		}
		if c.Duration == nil || *c.Duration != 20 {
			t.Fatalf("clip rank %d wrong duration: %v", c.Rank, c.Duration)
		}
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
}

func TestRenderStage_CancellationBetweenClips(t *testing.T) {
	cfg, videos, jobs, clips, videoID := newRenderFixture(t)
	_ = clips.CreateBatch(context.Background(), []*domain.Clip{
		{ID: uuid.New(), VideoID: videoID, StartTime: 0, EndTime: 20, Rank: 1},
		{ID: uuid.New(), VideoID: videoID, StartTime: 40, EndTime: 60, Rank: 2},
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeGenerateClips)

	tools := &fakeTools{}
	tools.onRender = func(_ localmedia.RenderClipOptions) {
		_, _ = jobs.Cancel(context.Background(), job.ID)
	}
	captioner, notifier := renderServices(t)
	stage := NewRenderStage(cfg, videos, jobs, clips, tools, captioner, notifier, testLogger(t))

	err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings())
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	if tools.renderCalls != 1 {
		t.Fatalf("expected rendering to stop after cancel, got %d renders", tools.renderCalls)
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if !got.Cancelled() {
		t.Fatalf("cancellation sentinel lost: status=%s message=%q", got.Status, got.ErrorMessage)
	}

	list, _ := clips.ListByVideo(context.Background(), videoID)
	if list[0].OutputPath == nil {
		t.Fatal("clip rendered before cancel should keep its output path")
	}
	if list[1].OutputPath != nil {
		t.Fatal("clip after cancel must not have an output path")
	}
}

func TestRenderStage_SkipsExistingFiles(t *testing.T) {
	cfg, videos, jobs, clips, videoID := newRenderFixture(t)
	clipID := uuid.New()
	_ = clips.CreateBatch(context.Background(), []*domain.Clip{
		{ID: clipID, VideoID: videoID, StartTime: 10, EndTime: 35, Rank: 1},
	})
	job := pendingJob(t, jobs, videoID, domain.JobTypeGenerateClips)

	outDir := cfg.RendersDirFor(videoID.String())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTempFile(t, outDir, "clip_1_"+clipID.String()+".mp4")

	tools := &fakeTools{}
	captioner, notifier := renderServices(t)
	stage := NewRenderStage(cfg, videos, jobs, clips, tools, captioner, notifier, testLogger(t))
	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if tools.renderCalls != 0 {
		t.Fatalf("existing file must not be re-rendered, got %d renders", tools.renderCalls)
	}
	got, _ := clips.GetByID(context.Background(), clipID)
	if got.OutputPath == nil {
		t.Fatal("skip path should still record the output path")
	}
}

func TestRenderStage_FailsWithoutClips(t *testing.T) {
	cfg, videos, jobs, clips, videoID := newRenderFixture(t)
	job := pendingJob(t, jobs, videoID, domain.JobTypeGenerateClips)

	tools := &fakeTools{}
	captioner, notifier := renderServices(t)
	stage := NewRenderStage(cfg, videos, jobs, clips, tools, captioner, notifier, testLogger(t))

	if err := stage.Execute(context.Background(), job.ID, config.DefaultClipSettings()); err == nil {
		t.Fatal("expected error when no clips exist")
	}
	got, _ := jobs.GetByID(context.Background(), job.ID)
	if got.Status != domain.JobFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}
}
