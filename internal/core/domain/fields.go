package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Update-field vocabulary shared by the pipeline and the storage gateway.
// A field is either one of the column names below or a group alias that
// expands to several columns.
const (
	ColFileSize        = "file_size"
	ColFormat          = "format"
	ColWidth           = "width"
	ColHeight          = "height"
	ColCameraMake      = "camera_make"
	ColCameraModel     = "camera_model"
	ColGPSLatitude     = "gps_latitude"
	ColGPSLongitude    = "gps_longitude"
	ColDateTaken       = "date_taken"
	ColLocationCountry = "location_country"
	ColLocationName    = "location_name"
	ColKeywordList     = "keyword_list"
)

var FieldGroups = map[string][]string{
	"metadata": {
		ColFileSize, ColFormat, ColWidth, ColHeight,
		ColCameraMake, ColCameraModel,
		ColGPSLatitude, ColGPSLongitude, ColDateTaken,
	},
	"location": {ColLocationCountry, ColLocationName},
	"keywords": {ColKeywordList},
}

var updateColumns = map[string]struct{}{
	ColFileSize:        {},
	ColFormat:          {},
	ColWidth:           {},
	ColHeight:          {},
	ColCameraMake:      {},
	ColCameraModel:     {},
	ColGPSLatitude:     {},
	ColGPSLongitude:    {},
	ColDateTaken:       {},
	ColLocationCountry: {},
	ColLocationName:    {},
	ColKeywordList:     {},
}

// ValidUpdateFields returns the sorted union of group aliases and column
// names accepted by ValidateFields.
func ValidUpdateFields() []string {
	fields := make([]string, 0, len(FieldGroups)+len(updateColumns))
	for group := range FieldGroups {
		fields = append(fields, group)
	}
	for column := range updateColumns {
		fields = append(fields, column)
	}
	sort.Strings(fields)
	return fields
}

// ValidateFields rejects unknown field names before any I/O happens.
func ValidateFields(fields []string) error {
	if len(fields) == 0 {
		return WrapError(ErrInvalidField, "validate update fields",
			fmt.Errorf("at least one field is required"))
	}

	var unknown []string
	for _, f := range fields {
		if _, ok := FieldGroups[f]; ok {
			continue
		}
		if _, ok := updateColumns[f]; ok {
			continue
		}
		unknown = append(unknown, f)
	}
	if len(unknown) > 0 {
		return WrapError(ErrInvalidField, "validate update fields",
			fmt.Errorf("unknown fields [%s], valid fields: %s",
				strings.Join(unknown, ", "),
				strings.Join(ValidUpdateFields(), ", ")))
	}
	return nil
}

// ExpandFields resolves group aliases into the deduplicated, sorted set of
// column names. Unknown names pass through untouched; callers validate
// first.
func ExpandFields(fields []string) []string {
	seen := make(map[string]struct{})
	for _, f := range fields {
		if columns, ok := FieldGroups[f]; ok {
			for _, c := range columns {
				seen[c] = struct{}{}
			}
			continue
		}
		seen[f] = struct{}{}
	}

	expanded := make([]string, 0, len(seen))
	for c := range seen {
		expanded = append(expanded, c)
	}
	sort.Strings(expanded)
	return expanded
}
