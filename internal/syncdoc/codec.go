package syncdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

var (
	// ErrInvalidDocument indicates that a stored document failed shape checks.
	ErrInvalidDocument = errors.New("syncdoc: invalid document")
	// ErrUnsupportedVersion indicates a version other than 1 or 2.
	ErrUnsupportedVersion = errors.New("syncdoc: unsupported version")
)

type versionProbe struct {
	Version *int `json:"version"`
}

// Decode parses a stored document. The version field alone selects the shape.
func Decode(data []byte) (Document, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if probe.Version == nil {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidDocument)
	}

	switch *probe.Version {
	case VersionLegacy:
		var doc DocumentV1
		if err := decodeShape(data, &doc); err != nil {
			return nil, err
		}
		if err := validateV1(doc); err != nil {
			return nil, err
		}
		return doc, nil
	case VersionCurrent:
		var doc DocumentV2
		if err := decodeShape(data, &doc); err != nil {
			return nil, err
		}
		if err := validateV2(doc); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *probe.Version)
	}
}

// Encode serializes a current document. The version is always written as 2.
func Encode(doc DocumentV2) ([]byte, error) {
	doc.Version = VersionCurrent
	if doc.Filters == nil {
		doc.Filters = []preferences.Filter{}
	}
	if doc.DisabledCalendars == nil {
		doc.DisabledCalendars = []string{}
	}
	if doc.Categories == nil {
		doc.Categories = []preferences.Category{}
	}
	return json.Marshal(doc)
}

func decodeShape(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

func validateV1(doc DocumentV1) error {
	if err := validateFilters(doc.Filters); err != nil {
		return err
	}
	if err := validateCategories(doc.CustomCategories); err != nil {
		return err
	}
	return nil
}

func validateV2(doc DocumentV2) error {
	if err := validateFilters(doc.Filters); err != nil {
		return err
	}
	if err := validateCategories(doc.Categories); err != nil {
		return err
	}
	if doc.TimedEventMinHours != nil && *doc.TimedEventMinHours < 0 {
		return fmt.Errorf("%w: negative timedEventMinHours", ErrInvalidDocument)
	}
	return nil
}

func validateFilters(filters []preferences.Filter) error {
	for index, filter := range filters {
		if strings.TrimSpace(filter.ID) == "" {
			return fmt.Errorf("%w: filter %d has no id", ErrInvalidDocument, index)
		}
		if strings.TrimSpace(filter.Pattern) == "" {
			return fmt.Errorf("%w: filter %s has an empty pattern", ErrInvalidDocument, filter.ID)
		}
	}
	return nil
}

func validateCategories(categories []preferences.Category) error {
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		if err := category.Validate(); err != nil {
			return fmt.Errorf("%w: category %q: %v", ErrInvalidDocument, category.ID, err)
		}
		if _, ok := seen[category.ID]; ok {
			return fmt.Errorf("%w: duplicate category id %q", ErrInvalidDocument, category.ID)
		}
		seen[category.ID] = struct{}{}
	}
	return nil
}
