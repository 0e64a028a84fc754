// Package publish runs the per-item publish sub-protocol: media download,
// resize, upload, alt text and status submission.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/salcido/reddibot/internal/domain"
	"github.com/salcido/reddibot/internal/media"
)

const maxAltTextLen = 1000

// API is the subset of the posting service used for one publish.
type API interface {
	UploadMedia(ctx context.Context, encoded string) (string, error)
	CreateMetadata(ctx context.Context, mediaID, altText string) error
	UpdateStatus(ctx context.Context, status string, mediaIDs []string) error
}

// MediaSource downloads the payload behind a resolved URL.
type MediaSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options sets the attachment limits.
type Options struct {
	MaxMediaBytes int
	ResizeWidth   int
}

// Pipeline implements domain.Publisher.
type Pipeline struct {
	api      API
	media    MediaSource
	composer *Composer
	opts     Options
	logger   *slog.Logger
}

var _ domain.Publisher = (*Pipeline)(nil)

func NewPipeline(api API, src MediaSource, composer *Composer, opts Options, logger *slog.Logger) *Pipeline {
	if opts.MaxMediaBytes <= 0 {
		opts.MaxMediaBytes = media.DefaultMaxBytes
	}
	if opts.ResizeWidth <= 0 {
		opts.ResizeWidth = media.DefaultWidth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{api: api, media: src, composer: composer, opts: opts, logger: logger}
}

// Publish posts item. Steps run strictly in order and the first failure
// aborts the rest, so nothing is submitted half-done.
func (p *Pipeline) Publish(ctx context.Context, item domain.Item) error {
	status, err := p.composer.Compose(item)
	if err != nil {
		return &domain.PublishStepError{Step: domain.StepStatus, Err: err}
	}

	switch item.Category {
	case domain.CategoryText:
		if err := p.api.UpdateStatus(ctx, status, nil); err != nil {
			return &domain.PublishStepError{Step: domain.StepStatus, Err: err}
		}
		return nil
	case domain.CategoryImage:
		return p.publishImage(ctx, item, status)
	default:
		return &domain.PublishStepError{Step: domain.StepStatus, Err: fmt.Errorf("item %s is not publishable (%s)", item.ID, item.Category)}
	}
}

func (p *Pipeline) publishImage(ctx context.Context, item domain.Item, status string) error {
	data, err := p.media.Fetch(ctx, item.ResolvedURL)
	if err != nil {
		return &domain.PublishStepError{Step: domain.StepFetchMedia, Err: err}
	}

	if len(data) > p.opts.MaxMediaBytes {
		p.logger.Debug("media_resize", slog.String("id", item.ID), slog.Int("bytes", len(data)))
	}
	encoded, err := media.Prepare(data, p.opts.MaxMediaBytes, p.opts.ResizeWidth)
	if err != nil {
		return &domain.PublishStepError{Step: domain.StepEncode, Err: err}
	}

	mediaID, err := p.api.UploadMedia(ctx, encoded)
	if err != nil {
		return &domain.PublishStepError{Step: domain.StepUpload, Err: err}
	}

	if err := p.api.CreateMetadata(ctx, mediaID, altText(item.Title)); err != nil {
		return &domain.PublishStepError{Step: domain.StepMetadata, Err: err}
	}

	if err := p.api.UpdateStatus(ctx, status, []string{mediaID}); err != nil {
		return &domain.PublishStepError{Step: domain.StepStatus, Err: err}
	}
	return nil
}

func altText(title string) string {
	if utf8.RuneCountInString(title) <= maxAltTextLen {
		return title
	}
	return string([]rune(title)[:maxAltTextLen])
}

// DryRun logs what would have been posted. It never fails after composing.
type DryRun struct {
	composer *Composer
	logger   *slog.Logger
}

var _ domain.Publisher = (*DryRun)(nil)

func NewDryRun(composer *Composer, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{composer: composer, logger: logger}
}

func (d *DryRun) Publish(_ context.Context, item domain.Item) error {
	status, err := d.composer.Compose(item)
	if err != nil {
		return &domain.PublishStepError{Step: domain.StepStatus, Err: err}
	}
	d.logger.Info("dry_run_publish",
		slog.String("id", item.ID),
		slog.String("category", item.Category.String()),
		slog.String("media", item.ResolvedURL),
		slog.String("status", status),
	)
	return nil
}
