package merge

import (
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/parsing"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxAlertReasonLength = 255

type Options struct {
	// Notify the authors of visible source posts, except the actor.
	SendAlert   bool
	AlertReason string

	// Record a merge_target entry in the moderator log.
	Log bool

	// The user performing the merge. Required.
	ActorID int

	// Replaces the target's text when set.
	Message *string
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.ActorID, validation.Required, validation.Min(1)),
		validation.Field(&o.AlertReason, validation.RuneLength(0, MaxAlertReasonLength)),
		validation.Field(&o.Message,
			validation.NilOrNotEmpty,
			validation.Length(0, parsing.MaxPostContentLength),
		),
	)
}

func validateRequest(target models.Post, sources []models.Post, opts Options) error {
	if err := opts.Validate(); err != nil {
		return &ValidationError{Message: "invalid merge options", Err: err}
	}

	seen := make(map[int]bool, len(sources))
	for _, source := range sources {
		if source.ID == target.ID {
			return &ValidationError{Message: "a post cannot be merged into itself"}
		}
		if seen[source.ID] {
			return &ValidationError{Message: "each source post may only be given once"}
		}
		seen[source.ID] = true
	}

	return nil
}
