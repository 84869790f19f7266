package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/internal/reports"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/mailer"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

type bundleRenderer interface {
	Bundle(ctx context.Context, date types.Date) (*reports.Bundle, error)
}

type archiver interface {
	ObjectName(parts ...string) string
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

type ExportJobParams struct {
	Logger    *logger.Logger
	Reports   bundleRenderer
	Mailer    mailer.Sender
	Archive   archiver
	Recipient string
	Clock     calendar.Clock
	Enabled   bool
}

// NewExportJob mails the kitchen's production reports for the next delivery
// day and archives them when a bucket is configured.
func NewExportJob(params ExportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reports == nil {
		return nil, fmt.Errorf("report service required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Recipient == "" {
		return nil, fmt.Errorf("export recipient required")
	}
	return &exportJob{
		logg:      params.Logger,
		reports:   params.Reports,
		mailer:    params.Mailer,
		archive:   params.Archive,
		recipient: params.Recipient,
		clock:     params.Clock,
		enabled:   params.Enabled,
	}, nil
}

type exportJob struct {
	logg      *logger.Logger
	reports   bundleRenderer
	mailer    mailer.Sender
	archive   archiver
	recipient string
	clock     calendar.Clock
	enabled   bool
}

func (j *exportJob) Name() string  { return "export-bundle" }
func (j *exportJob) At() TimeOfDay { return At(7, 0) }

func (j *exportJob) Run(ctx context.Context) (int, error) {
	if !j.enabled {
		j.logg.Info(ctx, "exports disabled outside production")
		return 0, nil
	}
	date := reports.NextExportDate(j.clock.Today())
	ctx = j.logg.WithField(ctx, "delivery_date", date.String())

	bundle, err := j.reports.Bundle(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("render export bundle: %w", err)
	}

	html, err := mailer.Render("export_bundle", map[string]any{"Date": date.String(), "Orders": bundle.Orders})
	if err != nil {
		return 0, err
	}
	msg := mailer.Message{
		To:      []string{j.recipient},
		Subject: fmt.Sprintf("Reports for %s", date.In(j.clock.LocalNow().Location()).Format("02/01/06")),
		HTML:    html,
	}
	for _, f := range bundle.Files {
		msg.Attachments = append(msg.Attachments, mailer.Attachment{Filename: f.Name, ContentType: f.ContentType, Data: f.Data})
	}

	var errs error
	if err := j.mailer.Send(ctx, msg); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("send export email: %w", err))
	}
	if j.archive != nil {
		for _, f := range bundle.Files {
			object := j.archive.ObjectName(date.String(), f.Name)
			if _, err := j.archive.Upload(ctx, object, f.ContentType, f.Data); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("archive %s: %w", f.Name, err))
			}
		}
	}
	if errs == nil {
		j.logg.Info(j.logg.WithField(ctx, "orders", bundle.Orders), "export bundle sent")
	}
	return bundle.Orders, errs
}
