package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/pkg/types"
)

func TestCanonicalConfigKeyOrderIndependent(t *testing.T) {
	a := canonicalConfigKey(types.IndexRequest{ProjectKeys: []string{"B", "A"}})
	b := canonicalConfigKey(types.IndexRequest{ProjectKeys: []string{"A", "B"}})
	assert.Equal(t, a, b, "key must not depend on input slice order")
}

func TestCanonicalConfigKeyDiffersOnContent(t *testing.T) {
	a := canonicalConfigKey(types.IndexRequest{ProjectKeys: []string{"A"}})
	b := canonicalConfigKey(types.IndexRequest{ProjectKeys: []string{"A", "B"}})
	assert.NotEqual(t, a, b)
}

func TestCanonicalConfigKeyIncludesIndexFiles(t *testing.T) {
	yes := true
	no := false
	withFiles := canonicalConfigKey(types.IndexRequest{IndexFiles: &yes})
	withoutFiles := canonicalConfigKey(types.IndexRequest{IndexFiles: &no})
	noFlag := canonicalConfigKey(types.IndexRequest{})

	assert.NotEqual(t, withFiles, withoutFiles)
	assert.NotEqual(t, withFiles, noFlag)
}

func TestCanonicalConfigKeyGmailSettings(t *testing.T) {
	key := canonicalConfigKey(types.IndexRequest{
		GmailSettings: &types.GmailFilterSettings{
			Domains: []string{"b.com", "a.com"},
			Senders: []string{"z@x.com"},
			Labels:  []string{"Inbox"},
		},
	})
	assert.Contains(t, key, "gmail.domains=a.com,b.com")
	assert.Contains(t, key, "gmail.senders=z@x.com")
	assert.Contains(t, key, "gmail.labels=Inbox")
}

func TestMergeSettingsRequestWins(t *testing.T) {
	request := types.IndexRequest{ProjectKeys: []string{"REQ"}}
	persisted := types.IndexRequest{ProjectKeys: []string{"PERSISTED"}, ChannelIDs: []string{"C1"}}

	merged := mergeSettings(request, persisted)
	assert.Equal(t, []string{"REQ"}, merged.ProjectKeys, "request-set fields must not be overridden")
	assert.Equal(t, []string{"C1"}, merged.ChannelIDs, "unset request fields fall back to persisted")
}

func TestMergeSettingsGmailPerSubfield(t *testing.T) {
	request := types.IndexRequest{
		GmailSettings: &types.GmailFilterSettings{Domains: []string{"req.com"}},
	}
	persisted := types.IndexRequest{
		GmailSettings: &types.GmailFilterSettings{
			Domains: []string{"persisted.com"},
			Senders: []string{"someone@persisted.com"},
			Labels:  []string{"Archive"},
		},
	}

	merged := mergeSettings(request, persisted)
	require.NotNil(t, merged.GmailSettings)
	assert.Equal(t, []string{"req.com"}, merged.GmailSettings.Domains, "request-set subfield must win")
	assert.Equal(t, []string{"someone@persisted.com"}, merged.GmailSettings.Senders, "unset subfield falls back to persisted")
	assert.Equal(t, []string{"Archive"}, merged.GmailSettings.Labels)
}

func TestMergeSettingsGmailNilRequestUsesPersisted(t *testing.T) {
	persisted := types.IndexRequest{
		GmailSettings: &types.GmailFilterSettings{Domains: []string{"persisted.com"}},
	}
	merged := mergeSettings(types.IndexRequest{}, persisted)
	require.NotNil(t, merged.GmailSettings)
	assert.Equal(t, []string{"persisted.com"}, merged.GmailSettings.Domains)
}
