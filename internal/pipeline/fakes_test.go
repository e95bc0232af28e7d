package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/services"
)

// In-memory repo fakes mirroring the database-backed semantics the
// stages rely on: fresh reads return copies, progress is monotonic
// while RUNNING, and a cancellation sentinel is never overwritten.

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*domain.Job{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, job := range r.jobs {
		if job.VideoID == videoID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) MarkRunning(ctx context.Context, id uuid.UUID, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = domain.JobRunning
	job.Step = step
	job.Progress = 0
	return nil
}

func (r *fakeJobRepo) SetProgress(ctx context.Context, id uuid.UUID, progress float64, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	if job.Status == domain.JobRunning && progress >= job.Progress {
		job.Progress = progress
		job.Step = step
	}
	return nil
}

func (r *fakeJobRepo) MarkSuccess(ctx context.Context, id uuid.UUID, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = domain.JobSuccess
	job.Step = step
	job.Progress = 1
	return nil
}

func (r *fakeJobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	if job.Status == domain.JobFailed && job.ErrorMessage == domain.CancelledMessage {
		return nil
	}
	job.Status = domain.JobFailed
	job.ErrorMessage = domain.TruncateError(message)
	return nil
}

func (r *fakeJobRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = domain.JobFailed
	job.ErrorMessage = domain.CancelledMessage
	return true, nil
}

type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*domain.Video
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{videos: map[uuid.UUID]*domain.Video{}}
}

func (r *fakeVideoRepo) Create(ctx context.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *video
	r.videos[video.ID] = &cp
	return nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return nil, nil
	}
	cp := *video
	return &cp, nil
}

func (r *fakeVideoRepo) GetWithJobs(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeVideoRepo) List(ctx context.Context) ([]*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Video
	for _, v := range r.videos {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeVideoRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return errors.New("video not found")
	}
	for key, val := range updates {
		switch key {
		case "title":
			video.Title = val.(string)
		case "audio_path":
			s := val.(string)
			video.AudioPath = &s
		case "duration_seconds":
			f := val.(float64)
			video.DurationSeconds = &f
		case "fps":
			f := val.(float64)
			video.FPS = &f
		case "raw_metadata":
			video.RawMetadata = val.(datatypes.JSON)
		case "analysis_data":
			video.AnalysisData = val.(datatypes.JSON)
		}
	}
	return nil
}

func (r *fakeVideoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
	return nil
}

type fakeClipRepo struct {
	mu    sync.Mutex
	clips map[uuid.UUID]*domain.Clip
}

func newFakeClipRepo() *fakeClipRepo {
	return &fakeClipRepo{clips: map[uuid.UUID]*domain.Clip{}}
}

func (r *fakeClipRepo) CreateBatch(ctx context.Context, clips []*domain.Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range clips {
		cp := *c
		r.clips[c.ID] = &cp
	}
	return nil
}

func (r *fakeClipRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clip, ok := r.clips[id]
	if !ok {
		return nil, nil
	}
	cp := *clip
	return &cp, nil
}

func (r *fakeClipRepo) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Clip
	for _, c := range r.clips {
		if c.VideoID == videoID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *fakeClipRepo) CountByVideo(ctx context.Context, videoID uuid.UUID) (int64, error) {
	list, _ := r.ListByVideo(ctx, videoID)
	return int64(len(list)), nil
}

func (r *fakeClipRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clip, ok := r.clips[id]
	if !ok {
		return errors.New("clip not found")
	}
	for key, val := range updates {
		switch key {
		case "output_path":
			s := val.(string)
			clip.OutputPath = &s
		case "duration":
			f := val.(float64)
			clip.Duration = &f
		case "hashtags":
			s := val.(string)
			clip.Hashtags = &s
		}
	}
	return nil
}

func (r *fakeClipRepo) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clips {
		if c.VideoID == videoID {
			delete(r.clips, id)
		}
	}
	return nil
}

// fakeTools scripts the media-tool surface with call counters.
type fakeTools struct {
	mu sync.Mutex

	probeCalls   int
	extractCalls int
	energyCalls  int
	renderCalls  int

	probeResult *localmedia.ProbeResult
	energies    []float64
	renderErr   error
	onRender    func(opts localmedia.RenderClipOptions)
	rendered    []localmedia.RenderClipOptions
}

func (f *fakeTools) AssertReady(ctx context.Context) error { return nil }

func (f *fakeTools) Probe(ctx context.Context, videoPath string) (*localmedia.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.probeResult == nil {
		return nil, errors.New("no probe result scripted")
	}
	return f.probeResult, nil
}

func (f *fakeTools) ExtractAudio(ctx context.Context, videoPath, outPath string, opts localmedia.AudioExtractOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls++
	return outPath, nil
}

func (f *fakeTools) AudioEnergy(ctx context.Context, audioPath string, duration float64) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.energyCalls++
	return f.energies, nil
}

func (f *fakeTools) DetectScenes(ctx context.Context, videoPath string, opts localmedia.SceneDetectOptions) ([]float64, error) {
	return nil, nil
}

func (f *fakeTools) RenderClip(ctx context.Context, opts localmedia.RenderClipOptions) error {
	f.mu.Lock()
	f.renderCalls++
	f.rendered = append(f.rendered, opts)
	cb := f.onRender
	err := f.renderErr
	f.mu.Unlock()
	if cb != nil {
		cb(opts)
	}
	return err
}

type fakeSceneDetector struct {
	times []float64
	calls int
}

func (f *fakeSceneDetector) DetectScenes(ctx context.Context, videoPath string) ([]float64, error) {
	f.calls++
	return f.times, nil
}

type fakeTranscriber struct {
	result *services.TranscriptResult
	err    error
	calls  int
	device string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, device string) (*services.TranscriptResult, error) {
	f.calls++
	f.device = device
	return f.result, f.err
}
