package http

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// GetTime parses an RFC3339 value. A missing key yields nil without error.
func GetTime(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return &t, nil
}

// GetInt returns def when key is absent.
func GetInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func GetOptionalInt(q url.Values, key string) (*int, error) {
	if q.Get(key) == "" {
		return nil, nil
	}

	n, err := GetInt(q, key, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func GetBool(q url.Values, key string) bool {
	return q.Get(key) == "true"
}
