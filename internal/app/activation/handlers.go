package activation

import (
	"context"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/domain/events"
)

// notifyHandler announces a finished sub-job by publishing an
// ItemActivatedEvent. The UI listening on the notification stream performs
// the actual download or result display.
type notifyHandler struct {
	label   string
	waiting string
	message string
	pub     events.DomainEventPublisher
}

// NewDownloadHandler announces a file ready for download.
func NewDownloadHandler(pub events.DomainEventPublisher) Handler {
	return &notifyHandler{
		label:   "Download",
		waiting: "Preparing download...",
		message: "download ready",
		pub:     pub,
	}
}

// NewPackageHandler announces packaged files ready for retrieval.
func NewPackageHandler(pub events.DomainEventPublisher) Handler {
	return &notifyHandler{
		label:   "Retrieve package",
		waiting: "Packaging files...",
		message: "package ready",
		pub:     pub,
	}
}

// NewScriptHandler announces a generated download script.
func NewScriptHandler(pub events.DomainEventPublisher) Handler {
	return &notifyHandler{
		label:   "Get script",
		waiting: "Building download script...",
		message: "download script ready",
		pub:     pub,
	}
}

// NewQueryHandler announces search results ready to display.
func NewQueryHandler(pub events.DomainEventPublisher) Handler {
	return &notifyHandler{
		label:   "Show results",
		waiting: "Searching...",
		message: "results ready",
		pub:     pub,
	}
}

func (h *notifyHandler) Build(item *background.TrackedItem, subIndex int, alreadyActivated bool) UIHandle {
	ready := item.ResolvedState(subIndex) == background.JobStateSuccess
	handle := UIHandle{
		Label:     h.label,
		Enabled:   ready,
		Activated: alreadyActivated,
	}
	if !ready && !item.ResolvedState(subIndex).IsDone() {
		handle.WaitingMessage = h.waiting
	}
	return handle
}

func (h *notifyHandler) Activate(ctx context.Context, item *background.TrackedItem, subIndex int, automatic bool) error {
	evt := background.NewItemActivatedEvent(item, subIndex, automatic, h.message)
	return h.pub.PublishDomainEvent(ctx, evt, events.WithKey(item.ID()))
}

func (h *notifyHandler) WaitingMessage() string { return h.waiting }

// RegisterDefaults installs the built-in handlers for every UI type.
func RegisterDefaults(d *Dispatcher, pub events.DomainEventPublisher) {
	d.Register(background.UITypeDownload, NewDownloadHandler(pub))
	d.Register(background.UITypePackage, NewPackageHandler(pub))
	d.Register(background.UITypeScript, NewScriptHandler(pub))
	d.Register(background.UITypeQuery, NewQueryHandler(pub))
}
