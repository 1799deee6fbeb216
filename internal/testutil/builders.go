package testutil

import (
	"encoding/json"
	"time"

	"github.com/linkhound/ingest/internal/domain/model"
)

// JobRequestBuilder builds CreateJobRequest values for tests.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest starts a builder with a valid linkpage request. Callers
// normally override the profile ID with one that exists in the test DB.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type: model.JobTypeLinkPage,
			Payload: model.JobPayload{
				SourceURL:        "https://linktr.ee/example",
				CreatorProfileID: "550e8400-e29b-41d4-a716-446655440000",
			},
			Priority:    50,
			MaxAttempts: 3,
		},
	}
}

func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

func (b *JobRequestBuilder) WithSourceURL(sourceURL string) *JobRequestBuilder {
	b.req.Payload.SourceURL = sourceURL
	return b
}

func (b *JobRequestBuilder) WithProfileID(profileID string) *JobRequestBuilder {
	b.req.Payload.CreatorProfileID = profileID
	return b
}

func (b *JobRequestBuilder) WithMetadata(metadata json.RawMessage) *JobRequestBuilder {
	b.req.Metadata = metadata
	return b
}

func (b *JobRequestBuilder) WithMetadataString(metadata string) *JobRequestBuilder {
	b.req.Metadata = json.RawMessage(metadata)
	return b
}

func (b *JobRequestBuilder) WithRunAt(runAt time.Time) *JobRequestBuilder {
	b.req.RunAt = &runAt
	return b
}

func (b *JobRequestBuilder) WithMaxAttempts(maxAttempts int) *JobRequestBuilder {
	b.req.MaxAttempts = maxAttempts
	return b
}

func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// LinkPageJobRequest is a ready linkpage request for the given profile.
func LinkPageJobRequest(profileID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithProfileID(profileID).
		Build()
}

// DropPageJobRequest is a ready droppage request for the given profile.
func DropPageJobRequest(profileID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeDropPage).
		WithProfileID(profileID).
		WithSourceURL("https://laylo.com/example").
		Build()
}

// VideoChannelJobRequest is a ready videochannel request for the given profile.
func VideoChannelJobRequest(profileID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeVideoChannel).
		WithProfileID(profileID).
		WithSourceURL("https://youtube.com/@example/about").
		Build()
}
