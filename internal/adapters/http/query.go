package http

import (
	"net/url"
	"strconv"
)

func GetString(q url.Values, key string, def string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return def
}

func GetInt(q url.Values, key string, def int) int {
	if v := q.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func GetBool(q url.Values, key string) bool {
	return q.Get(key) == "true"
}
