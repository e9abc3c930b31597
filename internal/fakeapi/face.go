package fakeapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// FaceHasher turns captured face images into stored templates. Matching is
// exact: the same image matches its template.
type FaceHasher struct {
	Cost int
}

// NewFaceHasher creates a FaceHasher. Default cost is bcrypt.MinCost if
// cost <= 0.
func NewFaceHasher(cost int) *FaceHasher {
	if cost <= 0 {
		cost = bcrypt.MinCost
	}
	return &FaceHasher{Cost: cost}
}

// digest shortens an image to fit bcrypt's 72 byte input limit.
func digest(image string) []byte {
	sum := sha256.Sum256([]byte(image))
	return []byte(hex.EncodeToString(sum[:]))
}

// Hash generates the template for image.
func (h *FaceHasher) Hash(image string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(digest(image), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashed), nil
}

// Match reports whether image matches template.
func (h *FaceHasher) Match(template, image string) bool {
	return bcrypt.CompareHashAndPassword([]byte(template), digest(image)) == nil
}
