package publish

import (
	"errors"
	"regexp"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/draft"
	"github.com/debemdeboas/wikidraft/internal/model"
)

// MaxKeyBytes keeps the hex-encoded draft file name within 255 bytes.
const MaxKeyBytes = 125

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

var (
	errControlChars = validation.NewError("validation_key_control", "must not contain control characters")
	errHeaderBody   = validation.NewError("validation_body_header", "must not start with a draft header tag")
)

var keyRules = []validation.Rule{
	validation.Required,
	validation.Length(1, MaxKeyBytes),
	validation.By(noControlChars),
}

func noControlChars(value interface{}) error {
	s, err := validation.EnsureString(value)
	if err != nil {
		return err
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return errControlChars
		}
	}
	return nil
}

func noHeaderPrefix(value interface{}) error {
	s, err := validation.EnsureString(value)
	if err != nil {
		return err
	}
	if draft.StartsWithHeader(s) {
		return errHeaderBody
	}
	return nil
}

// SaveRequest is the payload of an autosave or manual draft save.
type SaveRequest struct {
	Key  model.PageKey
	Body string
	// BaseDigest is the digest of the live page the editor started from.
	// When empty, the current live page is used.
	BaseDigest string
}

func (r *SaveRequest) Validate() error {
	return invalid(validation.ValidateStruct(r,
		validation.Field(&r.Key, keyRules...),
		validation.Field(&r.Body, validation.By(noHeaderPrefix)),
		validation.Field(&r.BaseDigest, validation.Match(digestPattern).Error("must be a lowercase sha256 hex digest")),
	))
}

// ValidateKey returns domain.ErrInvalidRequest for a key no draft can be stored under.
func ValidateKey(key model.PageKey) error {
	return invalid(validation.Validate(key, keyRules...))
}

// invalid turns ozzo validation failures into domain errors and passes other errors through.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return &domain.ValidationError{Message: err.Error()}
}
