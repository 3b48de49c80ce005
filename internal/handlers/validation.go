package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finassist/internal/money"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidDate   = errors.New("dates use YYYY-MM-DD")
	errInvalidPage   = errors.New("limit and offset must be non-negative integers")
)

func parseAmount(raw string) (money.Money, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return money.Zero, errInvalidAmount
	}
	return amount, nil
}

func parseOptionalAmount(raw *string) (*money.Money, error) {
	if raw == nil {
		return nil, nil
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

// parseDate accepts an empty string as "not given".
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return parsed, nil
}

func parsePage(query url.Values) (int, int, error) {
	limit, offset := defaultPageSize, 0
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			return 0, 0, errInvalidPage
		}
		limit = min(value, maxPageSize)
	}
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, 0, errInvalidPage
		}
		offset = value
	}
	return limit, offset, nil
}

func parseFlag(query url.Values, key string) bool {
	value, err := strconv.ParseBool(query.Get(key))
	return err == nil && value
}
