// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package artifact issues the holdable authentication artifact: a world
// item carrying a scannable QR rendering of the provisioning URI.
//
// The rest of the system detects the artifact only through IsArtifact;
// the tagging mechanism stays private to this package.
package artifact

import (
	"github.com/samber/oops"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/embermush/embermush/internal/world"
)

// tag marks an item as the authentication artifact.
const tag = "auth_artifact"

// ItemName is the display name of the issued artifact.
const ItemName = "Scan to set up 2FA"

// imageSize is the rendered QR edge length in pixels.
const imageSize = 128

// Issuer produces authentication artifacts.
type Issuer struct{}

// NewIssuer creates an Issuer.
func NewIssuer() *Issuer {
	return &Issuer{}
}

// Issue renders uri into a QR image and wraps it in a tagged item ready
// to be placed into the pinned slot.
func (i *Issuer) Issue(uri string) (*world.Item, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, imageSize)
	if err != nil {
		return nil, oops.Code("ARTIFACT_ENCODE_FAILED").Wrap(err)
	}
	return &world.Item{
		Name: ItemName,
		Tags: map[string]string{tag: "1"},
		Data: png,
	}, nil
}

// IsArtifact is the predicate the gating rules use to recognise the
// authentication artifact.
func IsArtifact(it *world.Item) bool {
	return it.HasTag(tag)
}
