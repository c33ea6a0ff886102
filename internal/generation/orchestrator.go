// Package generation drives text and image requests through the remote
// generation service: submit a job, detect immediate completion, otherwise
// poll the job's status URL until it settles or the attempt budget runs out.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sketch3d/internal/domain"
	"sketch3d/internal/infra"
	"sketch3d/internal/providers/modelslab"
)

const (
	DefaultTextPollInterval  = 6 * time.Second
	DefaultImagePollInterval = 8 * time.Second
	DefaultPollMaxAttempts   = 60

	maxRawBodyBytes = 4096
)

// Remote is the subset of the ModelsLab client the orchestrator needs.
type Remote interface {
	CreateTextJob(ctx context.Context, prompt string) (*modelslab.Response, error)
	UploadBase64(ctx context.Context, data string) (*modelslab.Response, error)
	CreateImageJob(ctx context.Context, imageURL string) (*modelslab.Response, error)
	FetchStatus(ctx context.Context, fetchURL string) (*modelslab.Response, error)
}

// Recorder receives job, poll and remote call observations.
type Recorder interface {
	ObserveJob(kind, outcome string, duration time.Duration)
	ObservePoll(kind, state string)
	ObserveRemote(operation, status string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveJob(string, string, time.Duration) {}
func (nopRecorder) ObservePoll(string, string)               {}
func (nopRecorder) ObserveRemote(string, string)             {}

// PollPolicy bounds one polling loop. The wait happens before every status
// check, including the first.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Ceiling is the longest a loop governed by p can wait in total.
func (p PollPolicy) Ceiling() time.Duration {
	return p.Interval * time.Duration(p.MaxAttempts)
}

func (p PollPolicy) withDefaults(interval time.Duration) PollPolicy {
	if p.Interval <= 0 {
		p.Interval = interval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	return p
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Orchestrator.
type Options struct {
	Remote      Remote
	Logger      *infra.Logger
	TextPolicy  PollPolicy
	ImagePolicy PollPolicy
	Recorder    Recorder
	Sleep       SleepFunc
}

// Orchestrator holds only immutable configuration; concurrent jobs share
// nothing but the remote client.
type Orchestrator struct {
	remote      Remote
	logger      *infra.Logger
	textPolicy  PollPolicy
	imagePolicy PollPolicy
	recorder    Recorder
	sleep       SleepFunc
	tracer      trace.Tracer
}

// New builds an orchestrator. Remote is required.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Orchestrator{
		remote:      opts.Remote,
		logger:      logger,
		textPolicy:  opts.TextPolicy.withDefaults(DefaultTextPollInterval),
		imagePolicy: opts.ImagePolicy.withDefaults(DefaultImagePollInterval),
		recorder:    recorder,
		sleep:       sleep,
		tracer:      infra.Tracer("sketch3d/generation"),
	}
}

// Policy returns the poll policy applied to kind.
func (o *Orchestrator) Policy(kind domain.RequestKind) PollPolicy {
	if kind == domain.RequestKindImage {
		return o.imagePolicy
	}
	return o.textPolicy
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// job carries the per-request labels shared by every step.
type job struct {
	kind       domain.RequestKind
	policy     PollPolicy
	failed     string
	incomplete string
	noFetch    string
	log        *zerolog.Logger
}

func (o *Orchestrator) newJob(ctx context.Context, kind domain.RequestKind) *job {
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = o.logger
	}
	l := log.With().Str("kind", string(kind)).Logger()
	j := &job{kind: kind, policy: o.Policy(kind), log: &l}
	switch kind {
	case domain.RequestKindImage:
		j.failed = "Image-to-3D failed"
		j.incomplete = "Image-to-3D task did not complete"
		j.noFetch = "No fetch_result returned from image_to_3d"
	default:
		j.failed = "Text-to-3D failed"
		j.incomplete = "Text-to-3D task did not complete"
		j.noFetch = "No fetch_result returned from ModelsLab"
	}
	return j
}

// Submit dispatches req to SubmitText or SubmitImage.
func (o *Orchestrator) Submit(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	switch req.Kind {
	case domain.RequestKindImage:
		return o.SubmitImage(ctx, req.ImageData)
	case domain.RequestKindText:
		return o.SubmitText(ctx, req.Prompt)
	}
	return domain.GenerationResult{}, req.Validate()
}

// SubmitText runs a text prompt to completion.
func (o *Orchestrator) SubmitText(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	return o.run(ctx, domain.GenerationRequest{Kind: domain.RequestKindText, Prompt: prompt},
		func(ctx context.Context, j *job) (*modelslab.Response, error) {
			j.log.Info().Int("prompt_length", len(prompt)).Msg("generation: submitting text job")
			return o.call(ctx, j, modelslab.OpTextToModel, func() (*modelslab.Response, error) {
				return o.remote.CreateTextJob(ctx, prompt)
			})
		})
}

// SubmitImage uploads an image data URL, then runs the image job to completion.
// The job is never created when the upload fails.
func (o *Orchestrator) SubmitImage(ctx context.Context, imageData string) (domain.GenerationResult, error) {
	return o.run(ctx, domain.GenerationRequest{Kind: domain.RequestKindImage, ImageData: imageData},
		func(ctx context.Context, j *job) (*modelslab.Response, error) {
			j.log.Info().Int("image_bytes", len(imageData)).Msg("generation: uploading image")
			upload, err := o.call(ctx, j, modelslab.OpUpload, func() (*modelslab.Response, error) {
				return o.remote.UploadBase64(ctx, imageData)
			})
			if err != nil {
				return nil, err
			}
			if !upload.Succeeded() {
				return nil, domain.NewError(domain.KindUpload, "Failed to upload image to ModelsLab", upload.Raw, nil)
			}
			imageURL := modelslab.UploadedURL(upload)
			if imageURL == "" {
				return nil, domain.NewError(domain.KindUpload, "No URL returned from base64_to_url", upload.Raw, nil)
			}

			j.log.Info().Str("image_url", imageURL).Msg("generation: submitting image job")
			return o.call(ctx, j, modelslab.OpImageToModel, func() (*modelslab.Response, error) {
				return o.remote.CreateImageJob(ctx, imageURL)
			})
		})
}

func (o *Orchestrator) run(ctx context.Context, req domain.GenerationRequest, create func(context.Context, *job) (*modelslab.Response, error)) (result domain.GenerationResult, err error) {
	j := o.newJob(ctx, req.Kind)
	started := time.Now()

	ctx, span := o.tracer.Start(ctx, "generation."+string(req.Kind), trace.WithAttributes(
		attribute.String("generation.kind", string(req.Kind)),
		attribute.Int("generation.max_attempts", j.policy.MaxAttempts),
	))
	defer func() {
		outcome := "success"
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			outcome = string(genErr.Kind)
			span.SetAttributes(attribute.String("generation.error_kind", outcome))
			logFailure(j.log, genErr)
		}
		o.recorder.ObserveJob(string(req.Kind), outcome, time.Since(started))
		infra.EndSpan(span, err)
	}()

	if err := req.Validate(); err != nil {
		return domain.GenerationResult{}, err
	}

	resp, err := create(ctx, j)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	if resp.Succeeded() {
		url := modelslab.ModelURL(resp)
		if url == "" {
			return domain.GenerationResult{}, domain.NewError(domain.KindMissingResult, "No model URL returned", resp.Raw, nil)
		}
		j.log.Info().Str("model_url", url).Msg("generation: completed without polling")
		return domain.GenerationResult{ModelURL: url}, nil
	}

	if resp.FetchResult == "" {
		return domain.GenerationResult{}, domain.NewError(domain.KindProtocol, j.noFetch, resp.Raw, nil)
	}

	return o.poll(ctx, j, resp.FetchResult)
}

// poll implements Pending -> {Success, Failed, Exhausted}. Every attempt
// sleeps first and then issues exactly one status call.
func (o *Orchestrator) poll(ctx context.Context, j *job, fetchURL string) (domain.GenerationResult, error) {
	j.log.Info().
		Str("fetch_result", fetchURL).
		Dur("interval", j.policy.Interval).
		Int("max_attempts", j.policy.MaxAttempts).
		Msg("generation: polling job")

	var last *modelslab.Response
	state := domain.JobPending
	for attempt := 1; attempt <= j.policy.MaxAttempts; attempt++ {
		if err := o.sleep(ctx, j.policy.Interval); err != nil {
			return domain.GenerationResult{}, domain.NewError(domain.KindTransport, j.failed, rawOf(last), err)
		}

		resp, err := o.call(ctx, j, modelslab.OpFetchStatus, func() (*modelslab.Response, error) {
			return o.remote.FetchStatus(ctx, fetchURL)
		})
		if err != nil {
			return domain.GenerationResult{}, err
		}
		last = resp
		state = domain.ParseJobState(resp.Status)
		o.recorder.ObservePoll(string(j.kind), string(state))
		j.log.Info().
			Int("attempt", attempt).
			Str("status", resp.Status).
			Msg("generation: poll")

		if state.Terminal() {
			break
		}
	}
	if state == domain.JobPending {
		state = domain.JobExhausted
		o.recorder.ObservePoll(string(j.kind), string(state))
	}

	if state != domain.JobSuccess {
		return domain.GenerationResult{}, domain.NewError(domain.KindJobIncomplete, j.incomplete, rawOf(last), nil)
	}
	url := modelslab.ModelURL(last)
	if url == "" {
		return domain.GenerationResult{}, domain.NewError(domain.KindMissingResult, "No model URL returned after polling", last.Raw, nil)
	}
	j.log.Info().Str("model_url", url).Msg("generation: completed")
	return domain.GenerationResult{ModelURL: url}, nil
}

// call performs one remote request and maps client errors onto the
// GenerationError taxonomy.
func (o *Orchestrator) call(ctx context.Context, j *job, op string, fn func() (*modelslab.Response, error)) (*modelslab.Response, error) {
	resp, err := fn()
	if err == nil {
		o.recorder.ObserveRemote(op, resp.Status)
		return resp, nil
	}

	var decodeErr *modelslab.DecodeError
	if errors.As(err, &decodeErr) {
		o.recorder.ObserveRemote(op, "undecodable")
		return nil, domain.NewError(domain.KindProtocol, j.failed, bodyAsRaw(decodeErr.Body), err)
	}
	o.recorder.ObserveRemote(op, "transport_error")
	return nil, domain.NewError(domain.KindTransport, j.failed, nil, err)
}

func rawOf(r *modelslab.Response) json.RawMessage {
	if r == nil {
		return nil
	}
	return r.Raw
}

// bodyAsRaw turns a non-JSON body into a JSON string so it can travel in Raw.
func bodyAsRaw(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if len(body) > maxRawBodyBytes {
		body = body[:maxRawBodyBytes]
	}
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return encoded
}

func logFailure(log *zerolog.Logger, genErr *domain.GenerationError) {
	event := log.Error().
		Str("error_kind", string(genErr.Kind)).
		Str("message", genErr.Message)
	if genErr.Err != nil {
		event = event.AnErr("cause", genErr.Err)
	}
	if len(genErr.Raw) > 0 {
		event = event.RawJSON("raw", genErr.Raw)
	}
	event.Msg("generation: failed")
}
