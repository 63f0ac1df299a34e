// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermush/embermush/internal/artifact"
	"github.com/embermush/embermush/internal/world"
)

func TestIssue(t *testing.T) {
	iss := artifact.NewIssuer()

	it, err := iss.Issue("otpauth://totp/Ember:rook?secret=GEZDGNBV&issuer=Ember&digits=6&period=30")
	require.NoError(t, err)

	assert.Equal(t, artifact.ItemName, it.Name)
	assert.True(t, artifact.IsArtifact(it))

	// PNG magic bytes.
	require.Greater(t, len(it.Data), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, it.Data[:4])
}

func TestIsArtifact(t *testing.T) {
	assert.False(t, artifact.IsArtifact(nil))
	assert.False(t, artifact.IsArtifact(&world.Item{Name: "rope"}))
	assert.False(t, artifact.IsArtifact(&world.Item{Name: "map", Tags: map[string]string{"decor": "1"}}))
}
