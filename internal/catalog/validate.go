package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength    = 200
	MaxCategoryLength = 100
	MaxTagsLength     = 255
)

func requireText(errs fieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs[field] = "must not be blank"
	}
}

func maxLength(errs fieldErrors, field, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		errs[field] = fmt.Sprintf("must be at most %d characters", limit)
	}
}
