package store

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxIDLength is the maximum length of a document id.
const MaxIDLength = 128

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// NewID returns a new random document id.
func NewID() string {
	return uuid.New().String()
}

// ValidateID checks if a document id is valid.
//
// Rules:
// - Non-empty string
// - Maximum length of 128 characters
// - No control characters, whitespace, '/' or ':'
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: id too long (max %d characters)", ErrInvalidID, MaxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: id contains control or whitespace character", ErrInvalidID)
		}
	}

	// '/' separates path segments in firestore and ':' separates redis key parts
	if strings.ContainsAny(id, "/:") {
		return fmt.Errorf("%w: id contains a reserved character", ErrInvalidID)
	}

	return nil
}

// ValidateCollection checks a collection name: lower-case letters, digits and
// underscores, starting with a letter.
func ValidateCollection(collection string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("%w: invalid collection name %q", ErrInvalidID, collection)
	}
	return nil
}

// ValidateRef validates a collection/id pair.
func ValidateRef(collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return ValidateID(id)
}
