package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/pkg/types"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
}

func TestAddRelevanceWeightsDoesNotMutateInput(t *testing.T) {
	e := NewEnricher(Identity{JiraUsername: "alice"}, fixedNow)
	original := types.Document{
		ID:     "J-1",
		Source: types.SourceJira,
		Metadata: types.Metadata{
			"assignee":  types.StringValue("alice"),
			"priority":  types.StringValue("High"),
			"updatedAt": types.StringValue("2024-06-14"),
		},
	}
	before := original.Metadata.Clone()

	out := e.AddRelevanceWeights(types.SourceJira, []types.Document{original})

	require.Len(t, out, 1)
	assert.Equal(t, before, original.Metadata)
	assert.NotContains(t, original.Metadata, "relevance_score")
	assert.Contains(t, out[0].Metadata, "relevance_score")
}

func TestJiraScoreAssignedToMeRecentHighPriority(t *testing.T) {
	e := NewEnricher(Identity{JiraUsername: "alice"}, fixedNow)
	docs := []types.Document{{
		ID:     "J-1",
		Source: types.SourceJira,
		Metadata: types.Metadata{
			"assignee":  types.StringValue("alice"),
			"priority":  types.StringValue("High"),
			"updatedAt": types.StringValue("2024-06-14"),
		},
	}}
	out := e.AddRelevanceWeights(types.SourceJira, docs)
	score := out[0].Metadata.GetNumber("relevance_score")
	assert.InDelta(t, 0.99, score, 1e-9)
}

func TestSlackDMScoresHigherThanPublicChannel(t *testing.T) {
	e := NewEnricher(Identity{}, fixedNow)
	dm := types.Document{ID: "S-1", Source: types.SourceSlack, Metadata: types.Metadata{"channel": types.StringValue("DM-123")}}
	pub := types.Document{ID: "S-2", Source: types.SourceSlack, Metadata: types.Metadata{"channel": types.StringValue("C-general")}}

	out := e.AddRelevanceWeights(types.SourceSlack, []types.Document{dm, pub})
	assert.Greater(t, out[0].Metadata.GetNumber("relevance_score"), out[1].Metadata.GetNumber("relevance_score"))
	assert.Equal(t, "dm", out[0].Metadata.GetString("channel_type"))
	assert.Equal(t, "public", out[1].Metadata.GetString("channel_type"))
}

func TestGmailThreadDepthFromBatch(t *testing.T) {
	e := NewEnricher(Identity{}, fixedNow)
	docs := []types.Document{
		{ID: "m1", Source: types.SourceGmail, Metadata: types.Metadata{"threadId": types.StringValue("t1")}},
		{ID: "m2", Source: types.SourceGmail, Metadata: types.Metadata{"threadId": types.StringValue("t1")}},
	}
	out := e.AddRelevanceWeights(types.SourceGmail, docs)
	// thread shared by 2 docs within the batch -> thread_depth bonus applies to both
	for _, d := range out {
		assert.GreaterOrEqual(t, d.Metadata.GetNumber("relevance_score"), 0.6)
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	e := NewEnricher(Identity{GitHubUsername: "bob", JiraUsername: "bob"}, fixedNow)
	for _, src := range types.AllSources {
		docs := []types.Document{{ID: "x", Source: src, Metadata: types.Metadata{}}}
		out := e.AddRelevanceWeights(src, docs)
		score := out[0].Metadata.GetNumber("relevance_score")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestIsInternalFallsBackToFreeMailHeuristic(t *testing.T) {
	id := Identity{}
	assert.False(t, id.isInternal("someone@gmail.com"))
	assert.True(t, id.isInternal("someone@acme-corp.example"))
}

func TestIsInternalWithCompanyDomains(t *testing.T) {
	id := Identity{CompanyDomains: []string{"acme.com"}}
	assert.True(t, id.isInternal("person@acme.com"))
	assert.False(t, id.isInternal("person@acme-corp.example"))
}
