//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceType_Authoritative(t *testing.T) {
	assert.True(t, SourceTypeManual.Authoritative())
	assert.True(t, SourceTypeAdmin.Authoritative())
	assert.False(t, SourceTypeIngested.Authoritative())
}

func TestLinkState_Valid(t *testing.T) {
	assert.True(t, LinkStateActive.Valid())
	assert.True(t, LinkStateSuggested.Valid())
	assert.True(t, LinkStateRejected.Valid())
	assert.False(t, LinkState("hidden").Valid())
}

func TestCandidate_Validate(t *testing.T) {
	valid := Candidate{
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/artist",
		SourcePlatform:   "linktree",
		SourceURL:        "https://linktr.ee/artist",
	}

	t.Run("valid", func(t *testing.T) {
		c := valid
		assert.NoError(t, c.Validate())
	})

	t.Run("missing profile", func(t *testing.T) {
		c := valid
		c.CreatorProfileID = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing platform", func(t *testing.T) {
		c := valid
		c.Platform = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing url", func(t *testing.T) {
		c := valid
		c.URL = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing source platform", func(t *testing.T) {
		c := valid
		c.SourcePlatform = ""
		assert.Error(t, c.Validate())
	})
}

func TestUpdateLinkStateRequest_Validate(t *testing.T) {
	t.Run("valid manual rejection", func(t *testing.T) {
		req := UpdateLinkStateRequest{State: LinkStateRejected, Actor: SourceTypeManual}
		assert.NoError(t, req.Validate())
	})

	t.Run("ingestion may not change state", func(t *testing.T) {
		req := UpdateLinkStateRequest{State: LinkStateActive, Actor: SourceTypeIngested}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "manual or admin")
	})

	t.Run("invalid state", func(t *testing.T) {
		req := UpdateLinkStateRequest{State: LinkState("hidden"), Actor: SourceTypeAdmin}
		assert.Error(t, req.Validate())
	})
}

func TestMergeOutcome_Total(t *testing.T) {
	o := MergeOutcome{Created: 2, Updated: 3, Unchanged: 4}
	assert.Equal(t, 9, o.Total())
}

func TestCreateCreatorProfileRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := CreateCreatorProfileRequest{DisplayName: "Artist", Handle: "artist_official"}
		assert.NoError(t, req.Validate())
	})

	t.Run("missing display name", func(t *testing.T) {
		req := CreateCreatorProfileRequest{Handle: "artist"}
		assert.Error(t, req.Validate())
	})

	t.Run("uppercase handle rejected", func(t *testing.T) {
		req := CreateCreatorProfileRequest{DisplayName: "Artist", Handle: "Artist"}
		assert.Error(t, req.Validate())
	})

	t.Run("handle with space rejected", func(t *testing.T) {
		req := CreateCreatorProfileRequest{DisplayName: "Artist", Handle: "the artist"}
		assert.Error(t, req.Validate())
	})
}

func TestUpdateCreatorProfileRequest_Validate(t *testing.T) {
	t.Run("no updates", func(t *testing.T) {
		req := UpdateCreatorProfileRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("valid handle update", func(t *testing.T) {
		h := "new-handle"
		req := UpdateCreatorProfileRequest{Handle: &h}
		assert.NoError(t, req.Validate())
	})

	t.Run("empty display name", func(t *testing.T) {
		n := "  "
		req := UpdateCreatorProfileRequest{DisplayName: &n}
		assert.Error(t, req.Validate())
	})
}
