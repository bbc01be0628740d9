package catalog

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/models"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 5000
)

var thumbnailExtensions = []any{"jpg", "jpeg", "png", "gif", "webp"}

// normalizeDraft trims user-entered text fields.
func normalizeDraft(c models.Character) models.Character {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	if c.Thumbnail != nil {
		t := *c.Thumbnail
		t.Path = strings.TrimSpace(t.Path)
		t.Extension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t.Extension), "."))
		c.Thumbnail = &t
	}
	return c
}

// validateDraft checks a create or update payload. Errors wrap
// apperr.ErrValidation.
func validateDraft(c models.Character) error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&c.Description, validation.RuneLength(0, maxDescriptionLength)),
	)
	if err == nil && c.Thumbnail != nil {
		t := c.Thumbnail
		err = validation.ValidateStruct(t,
			validation.Field(&t.Extension, validation.When(t.Path != "",
				validation.Required, validation.In(thumbnailExtensions...))),
		)
		if err != nil {
			err = fmt.Errorf("thumbnail: %w", err)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return nil
}
