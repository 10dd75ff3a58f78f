package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler serves two triggers: S3 ObjectCreated notifications, which
// finalize the matching uploads, and any other event (an EventBridge schedule
// in practice), which runs a full sweep.
func (r *Reconciler) LambdaHandler(ctx context.Context, raw json.RawMessage) (Report, error) {
	var s3Event events.S3Event
	if err := json.Unmarshal(raw, &s3Event); err == nil && isS3Event(s3Event) {
		return r.handleS3Event(ctx, s3Event)
	}

	var scheduled events.CloudWatchEvent
	if err := json.Unmarshal(raw, &scheduled); err != nil {
		return Report{}, fmt.Errorf("decode event: %w", err)
	}
	r.logger.InfoContext(ctx, "scheduled sweep", "source", scheduled.Source, "detail_type", scheduled.DetailType)
	report, err := r.Sweep(ctx)
	r.logger.InfoContext(ctx, "reconcile sweep",
		"finalized", report.Finalized, "abandoned", report.Abandoned, "orphans", report.Orphans)
	return report, err
}

func isS3Event(e events.S3Event) bool {
	return len(e.Records) > 0 && e.Records[0].EventSource == "aws:s3"
}

func (r *Reconciler) handleS3Event(ctx context.Context, e events.S3Event) (Report, error) {
	var (
		report Report
		errs   []error
	)
	for _, rec := range e.Records {
		if !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		// Notification keys arrive form-encoded.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("decode key %q: %w", rec.S3.Object.Key, err))
			continue
		}
		finalized, err := r.HandleObjectCreated(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if finalized {
			report.Finalized++
		}
	}
	return report, errors.Join(errs...)
}
