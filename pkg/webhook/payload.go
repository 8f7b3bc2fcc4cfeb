package webhook

import (
	"github.com/go-playground/validator/v10"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// mergeRequestPayload is the part of GitLab's merge request hook body the bot reads.
type mergeRequestPayload struct {
	ObjectKind string `json:"object_kind"`
	User       struct {
		Name     string `json:"name"`
		Username string `json:"username" validate:"required"`
	} `json:"user"`
	ObjectAttributes struct {
		Source struct {
			WebURL string `json:"web_url"`
		} `json:"source"`
		LastCommit struct {
			ID string `json:"id" validate:"required"`
		} `json:"last_commit"`
		State           string `json:"state" validate:"required"`
		Action          string `json:"action"`
		Title           string `json:"title"`
		TargetBranch    string `json:"target_branch"`
		ID              int    `json:"id"`
		IID             int    `json:"iid" validate:"required,gt=0"`
		TargetProjectID int    `json:"target_project_id" validate:"required,gt=0"`
		SourceProjectID int    `json:"source_project_id"`
	} `json:"object_attributes"`
}

// event converts the payload into the immutable per-delivery event.
func (p *mergeRequestPayload) event(eventType, deliveryID string) *types.MergeRequestEvent {
	attrs := p.ObjectAttributes
	sourceProject := attrs.SourceProjectID
	if sourceProject == 0 {
		sourceProject = attrs.TargetProjectID
	}
	return &types.MergeRequestEvent{
		EventType:       eventType,
		DeliveryID:      deliveryID,
		Action:          attrs.Action,
		State:           attrs.State,
		Title:           attrs.Title,
		SourceRepoURL:   attrs.Source.WebURL,
		HeadCommitSHA:   attrs.LastCommit.ID,
		TargetBranch:    attrs.TargetBranch,
		CreatorName:     p.User.Name,
		CreatorUsername: p.User.Username,
		TargetProjectID: attrs.TargetProjectID,
		SourceProjectID: sourceProject,
		MergeRequestID:  attrs.ID,
		MergeRequestIID: attrs.IID,
	}
}

// payloadValidator adapts validator/v10 to echo.Validator.
type payloadValidator struct {
	validate *validator.Validate
}

func newPayloadValidator() *payloadValidator {
	return &payloadValidator{validate: validator.New()}
}

func (v *payloadValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
