// Package pipeline drives a content job through its stages: competitor
// research, content generation, internal linking, and image sourcing.
// It owns the job state machine and the failure policy: adapter errors
// become job failures with partial results preserved; precondition and
// storage errors surface to the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/madigan/contentpipe/internal/content"
	"github.com/madigan/contentpipe/internal/generate"
	"github.com/madigan/contentpipe/internal/linker"
	"github.com/madigan/contentpipe/internal/storage"
)

// ErrInvalidState is returned when an operation's status precondition
// does not hold (e.g. publishing a job that is not in review).
var ErrInvalidState = errors.New("invalid job state for operation")

// stageTimeout bounds each external adapter call.
const stageTimeout = 5 * time.Minute

// Researcher produces a competitive snapshot for a keyword.
type Researcher interface {
	Research(ctx context.Context, keyword string) (content.CompetitorAnalysis, error)
	Configured() bool
}

// Generator produces a structured article draft.
type Generator interface {
	Generate(ctx context.Context, keyword string, analysis content.CompetitorAnalysis) (content.GeneratedContent, error)
	Configured() bool
}

// ImageSourcer returns usable images for descriptive prompts.
type ImageSourcer interface {
	Source(ctx context.Context, prompts []string) ([]content.Image, error)
	Configured() bool
}

// OpportunityScorer ranks keyword opportunities for auto-generation.
type OpportunityScorer interface {
	Opportunities(ctx context.Context) ([]content.KeywordOpportunity, error)
	Configured() bool
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store         *storage.Store
	Research      Researcher
	Generator     Generator
	Images        ImageSourcer
	Opportunities OpportunityScorer
	// Links are the internal-link candidates applied to every draft.
	Links       []linker.Candidate
	LinkOptions linker.Options
	// BatchConcurrency bounds concurrent advances in AutoGenerate
	// (default 3).
	BatchConcurrency int
}

// Orchestrator is the pipeline state machine.
type Orchestrator struct {
	store         *storage.Store
	research      Researcher
	generator     Generator
	images        ImageSourcer
	opportunities OpportunityScorer
	links         []linker.Candidate
	linkOpts      linker.Options
	batchLimit    int
	logger        *slog.Logger

	// mu guards locks; locks serializes concurrent advances per job id.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	limit := deps.BatchConcurrency
	if limit <= 0 {
		limit = 3
	}
	return &Orchestrator{
		store:         deps.Store,
		research:      deps.Research,
		generator:     deps.Generator,
		images:        deps.Images,
		opportunities: deps.Opportunities,
		links:         deps.Links,
		linkOpts:      deps.LinkOptions,
		batchLimit:    limit,
		logger:        slog.Default(),
		locks:         make(map[string]*sync.Mutex),
	}
}

// lockJob returns the per-job mutex, creating it on first use.
func (o *Orchestrator) lockJob(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// Create allocates a new job in pending and persists it.
func (o *Orchestrator) Create(ctx context.Context, keyword string, category content.Category) (content.ContentJob, error) {
	if keyword == "" {
		return content.ContentJob{}, fmt.Errorf("%w: keyword is required", ErrInvalidState)
	}
	if category == "" {
		category = content.CategoryGuides
	}
	if !category.Valid() {
		return content.ContentJob{}, fmt.Errorf("%w: unknown category %q", ErrInvalidState, category)
	}

	now := time.Now().UTC()
	job := content.ContentJob{
		ID:        uuid.NewString(),
		Status:    content.StatusPending,
		Keyword:   keyword,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateJob(job); err != nil {
		return content.ContentJob{}, fmt.Errorf("creating job: %w", err)
	}
	o.logger.Info("job created", "job_id", job.ID, "keyword", keyword, "category", category)
	return job, nil
}

// Advance runs a pending job through every stage to reviewing. Calling it
// on a job in any other status is a no-op returning the current record,
// so repeated or concurrent advances cannot double-apply a stage. Adapter
// failures move the job to failed with the error recorded and all partial
// results preserved; only storage errors are returned.
func (o *Orchestrator) Advance(ctx context.Context, id string) (content.ContentJob, error) {
	l := o.lockJob(id)
	l.Lock()
	defer l.Unlock()

	job, err := o.store.GetJob(id)
	if err != nil {
		return content.ContentJob{}, err
	}
	if job.Status != content.StatusPending {
		o.logger.Debug("advance is a no-op", "job_id", id, "status", job.Status)
		return job, nil
	}

	// Claim the job via status CAS so a concurrent advance (possibly from
	// another process) observes the conflict and backs off.
	job, err = o.store.ClaimJob(id, content.StatusPending, content.StatusResearching)
	if errors.Is(err, storage.ErrConflict) {
		return o.store.GetJob(id)
	}
	if err != nil {
		return content.ContentJob{}, err
	}

	// Stage 1: competitor research.
	analysis, err := o.callResearch(ctx, job.Keyword)
	if err != nil {
		return o.failJob(job, "competitor research", err)
	}
	job.CompetitorAnalysis = &analysis
	job.Status = content.StatusGenerating
	if err := o.store.UpdateJob(job); err != nil {
		return job, fmt.Errorf("persisting research result: %w", err)
	}
	o.logger.Info("research complete", "job_id", id, "source", analysis.Source, "results", len(analysis.TopResults))

	// Stage 2: content generation.
	draft, err := o.callGenerate(ctx, job.Keyword, analysis)
	if err != nil {
		return o.failJob(job, "content generation", err)
	}
	job.GeneratedContent = &draft
	if err := o.store.UpdateJob(job); err != nil {
		return job, fmt.Errorf("persisting generated content: %w", err)
	}
	o.logger.Info("generation complete", "job_id", id, "source", draft.Source, "words", generate.WordCount(draft.Body))

	// Stage 3: render and insert internal links.
	rendered, err := generate.Render(draft.Body)
	if err != nil {
		return o.failJob(job, "rendering", err)
	}
	linked, inserted, err := linker.InsertLinks(rendered, o.links, o.linkOpts)
	if err != nil {
		return o.failJob(job, "internal linking", err)
	}
	o.logger.Debug("links inserted", "job_id", id, "count", inserted)

	// Stage 4: image sourcing.
	imgs, err := o.callImages(ctx, draft.ImagePrompts)
	if err != nil {
		return o.failJob(job, "image sourcing", err)
	}

	// Assemble the publishable artifact and move to review.
	post := assemblePost(draft, linked, imgs)
	job.FinalPost = &post
	job.Status = content.StatusReviewing
	if err := o.store.UpdateJob(job); err != nil {
		return job, fmt.Errorf("persisting final post: %w", err)
	}
	o.logger.Info("job ready for review", "job_id", id, "slug", post.Slug)
	return job, nil
}

func (o *Orchestrator) callResearch(ctx context.Context, keyword string) (content.CompetitorAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	return o.research.Research(ctx, keyword)
}

func (o *Orchestrator) callGenerate(ctx context.Context, keyword string, analysis content.CompetitorAnalysis) (content.GeneratedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	return o.generator.Generate(ctx, keyword, analysis)
}

func (o *Orchestrator) callImages(ctx context.Context, prompts []string) ([]content.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	return o.images.Source(ctx, prompts)
}

// failJob records a stage failure on the job. Results attached by earlier
// stages stay in place so the operator can diagnose the failure. The
// stage error is recovered into job state, not returned.
func (o *Orchestrator) failJob(job content.ContentJob, stage string, stageErr error) (content.ContentJob, error) {
	o.logger.Warn("stage failed", "job_id", job.ID, "stage", stage, "error", stageErr)
	job.Status = content.StatusFailed
	job.Error = fmt.Sprintf("%s: %v", stage, stageErr)
	if err := o.store.UpdateJob(job); err != nil {
		return job, fmt.Errorf("persisting failure: %w", err)
	}
	return job, nil
}

// assemblePost builds the final artifact from the draft, the linked
// rendered body, and the sourced images.
func assemblePost(draft content.GeneratedContent, linkedBody string, imgs []content.Image) content.FinalPost {
	excerpt := draft.Excerpt
	if excerpt == "" {
		excerpt = generate.Excerpt(linkedBody, 160)
	}
	return content.FinalPost{
		Slug:         content.Slugify(draft.Title),
		Title:        draft.Title,
		Excerpt:      excerpt,
		Body:         draft.Body,
		RenderedBody: linkedBody,
		Tags:         draft.Tags,
		Keywords:     draft.Keywords,
		Images:       imgs,
		ReadingTime:  generate.ReadingTime(generate.WordCount(linkedBody)),
	}
}

// Publish moves a reviewed job to published. Any other starting status is
// a precondition violation.
func (o *Orchestrator) Publish(ctx context.Context, id string) (content.ContentJob, error) {
	l := o.lockJob(id)
	l.Lock()
	defer l.Unlock()

	job, err := o.store.GetJob(id)
	if err != nil {
		return content.ContentJob{}, err
	}
	if job.Status != content.StatusReviewing {
		return content.ContentJob{}, fmt.Errorf("%w: cannot publish job in status %q", ErrInvalidState, job.Status)
	}

	job, err = o.store.ClaimJob(id, content.StatusReviewing, content.StatusPublished)
	if errors.Is(err, storage.ErrConflict) {
		return content.ContentJob{}, fmt.Errorf("%w: cannot publish job in status %q", ErrInvalidState, job.Status)
	}
	if err != nil {
		return content.ContentJob{}, err
	}
	o.logger.Info("job published", "job_id", id, "keyword", job.Keyword)
	return job, nil
}

// PostUpdates carries the editable fields of a post under review. Nil
// fields are left unchanged.
type PostUpdates struct {
	Title   *string `json:"title,omitempty"`
	Excerpt *string `json:"excerpt,omitempty"`
	Body    *string `json:"body,omitempty"`
}

// UpdatePost merges edits into the final post of a job under review,
// recomputing the rendered body, internal links, and reading time. A
// published post is immutable through this pipeline.
func (o *Orchestrator) UpdatePost(ctx context.Context, id string, updates PostUpdates) (content.ContentJob, error) {
	l := o.lockJob(id)
	l.Lock()
	defer l.Unlock()

	job, err := o.store.GetJob(id)
	if err != nil {
		return content.ContentJob{}, err
	}
	if job.Status != content.StatusReviewing || job.FinalPost == nil {
		return content.ContentJob{}, fmt.Errorf("%w: cannot update post in status %q", ErrInvalidState, job.Status)
	}

	post := *job.FinalPost
	if updates.Title != nil {
		post.Title = *updates.Title
		post.Slug = content.Slugify(post.Title)
	}
	if updates.Excerpt != nil {
		post.Excerpt = *updates.Excerpt
	}
	if updates.Body != nil {
		post.Body = *updates.Body
		rendered, err := generate.Render(post.Body)
		if err != nil {
			return content.ContentJob{}, fmt.Errorf("rendering updated body: %w", err)
		}
		linked, _, err := linker.InsertLinks(rendered, o.links, o.linkOpts)
		if err != nil {
			return content.ContentJob{}, fmt.Errorf("linking updated body: %w", err)
		}
		post.RenderedBody = linked
	}
	post.ReadingTime = generate.ReadingTime(generate.WordCount(post.RenderedBody))

	job.FinalPost = &post
	if err := o.store.UpdateJob(job); err != nil {
		return content.ContentJob{}, fmt.Errorf("persisting post update: %w", err)
	}
	return o.store.GetJob(id)
}

// Delete removes the job unconditionally.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.store.DeleteJob(id); err != nil {
		return err
	}
	// Release the per-job mutex too, or a long-lived server accumulates
	// one entry for every job it ever touched.
	o.mu.Lock()
	delete(o.locks, id)
	o.mu.Unlock()
	return nil
}

// Get returns a single job.
func (o *Orchestrator) Get(ctx context.Context, id string) (content.ContentJob, error) {
	return o.store.GetJob(id)
}

// List returns all jobs, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]content.ContentJob, error) {
	return o.store.ListJobs()
}

// Opportunities returns the scorer's ranked keyword opportunities.
func (o *Orchestrator) Opportunities(ctx context.Context) ([]content.KeywordOpportunity, error) {
	return o.opportunities.Opportunities(ctx)
}

// AutoGenerate creates up to count jobs from the top-ranked opportunities
// (skipping keywords that already have a non-failed job) and advances
// them concurrently. Each job succeeds or fails on its own; one failing
// job never aborts the batch.
func (o *Orchestrator) AutoGenerate(ctx context.Context, count int) ([]content.ContentJob, error) {
	if count <= 0 {
		return nil, nil
	}

	opps, err := o.opportunities.Opportunities(ctx)
	if err != nil {
		return nil, fmt.Errorf("scoring opportunities: %w", err)
	}

	var created []content.ContentJob
	for _, opp := range opps {
		if len(created) >= count {
			break
		}
		active, err := o.store.HasActiveJob(opp.Keyword)
		if err != nil {
			return nil, fmt.Errorf("checking existing jobs: %w", err)
		}
		if active {
			continue
		}
		job, err := o.Create(ctx, opp.Keyword, content.CategoryGuides)
		if err != nil {
			return nil, err
		}
		created = append(created, job)
	}

	results := make([]content.ContentJob, len(created))
	var g errgroup.Group
	g.SetLimit(o.batchLimit)
	for i, job := range created {
		g.Go(func() error {
			advanced, err := o.Advance(ctx, job.ID)
			if err != nil {
				// Storage-level failure for this job; report the record as
				// we last knew it rather than aborting the batch.
				o.logger.Error("batch advance failed", "job_id", job.ID, "error", err)
				advanced = job
			}
			results[i] = advanced
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// SystemStatus reports which dependencies are configured and basic job
// counts.
type SystemStatus struct {
	SearchConfigured bool `json:"searchConfigured"`
	SerpConfigured   bool `json:"serpConfigured"`
	LLMConfigured    bool `json:"llmConfigured"`
	ImagesConfigured bool `json:"imagesConfigured"`
	JobCount         int  `json:"jobCount"`
	PublishedCount   int  `json:"publishedCount"`
}

// Status returns the current system status.
func (o *Orchestrator) Status(ctx context.Context) (SystemStatus, error) {
	total, published, err := o.store.CountJobs()
	if err != nil {
		return SystemStatus{}, fmt.Errorf("counting jobs: %w", err)
	}
	return SystemStatus{
		SearchConfigured: o.opportunities.Configured(),
		SerpConfigured:   o.research.Configured(),
		LLMConfigured:    o.generator.Configured(),
		ImagesConfigured: o.images.Configured(),
		JobCount:         total,
		PublishedCount:   published,
	}, nil
}
