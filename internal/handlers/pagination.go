package handlers

import (
	"errors"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var errInvalidPagination = errors.New("invalid pagination params")

const maxPageSize = 100

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 || l > maxPageSize {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}

	return page, limit, nil
}

func findPageOptions(page, limit int64) *options.FindOptions {
	return options.Find().
		SetSkip((page - 1) * limit).
		SetLimit(limit)
}
