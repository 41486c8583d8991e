package http

import (
	"net/http"
	"strconv"

	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
)

// ExtractPage reads the page and size query parameters. Absent values fall
// back to page 0 and the default page size; range checks are left to the
// caller so out-of-range values can be reported as validation errors.
func ExtractPage(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 0
	if s := query.Get("page"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid page parameter: " + s)
		}
		page = v
	}

	size := config.DefaultPageSize
	if s := query.Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid size parameter: " + s)
		}
		size = v
	}

	return page, size, nil
}
