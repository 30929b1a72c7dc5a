package channel

import (
	"context"
	"fmt"
	"log/slog"

	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

// Router implements ports.Dispatcher by resolving a job's channel name in the
// registry and picking the send variant from the job payload.
type Router struct {
	registry       *Registry
	defaultChannel string
	logger         *slog.Logger
}

var _ ports.Dispatcher = (*Router)(nil)

// NewRouter wires the channel registry with a fallback channel name.
func NewRouter(reg *Registry, defaultChannel string, log *slog.Logger) *Router {
	return &Router{
		registry:       reg,
		defaultChannel: defaultChannel,
		logger:         log,
	}
}

// Dispatch sends one job and returns the channel-assigned message id. A job
// naming an unregistered channel is a permanent failure: retrying cannot fix
// its routing.
func (r *Router) Dispatch(ctx context.Context, job domain.DeliveryJob) (string, error) {
	if r.registry == nil {
		return "", fmt.Errorf("channel registry is not configured")
	}

	name := job.Channel
	if name == "" {
		name = r.defaultChannel
	}

	ch, err := r.registry.Resolve(name)
	if err != nil {
		return "", Permanent("unroutable", err)
	}

	r.debug("dispatch", "job", job.ID, "channel", name, "destination", job.Destination)

	switch {
	case job.TemplateID != "":
		return ch.SendTemplate(ctx, job.Destination, job.TemplateID, job.Language, job.TemplateParams)
	case job.ImageURL != "":
		return ch.SendImage(ctx, job.Destination, job.ImageURL, job.Text)
	default:
		return ch.SendText(ctx, job.Destination, job.Text)
	}
}

func (r *Router) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
