package table

import (
	"math"
	"strconv"
	"strings"
)

// VideoURLPrefix is prepended to each identifier of a video-link field.
const VideoURLPrefix = "https://youtu.be/"

// VideoLinks splits a space-separated list of video identifiers into URLs.
// Identifiers are not validated.
func VideoLinks(field string) []string {
	ids := strings.Fields(field)
	if len(ids) == 0 {
		return nil
	}
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = VideoURLPrefix + id
	}
	return urls
}

// FormatNumber renders n with two decimals, or with one significant digit
// when it is below 0.01. Missing numbers render empty.
func FormatNumber(n float64) string {
	if math.IsNaN(n) {
		return ""
	}
	if n < 0.01 {
		return strconv.FormatFloat(n, 'g', 1, 64)
	}
	return strconv.FormatFloat(n, 'f', 2, 64)
}

// FormatValue renders v for display in column c.
func FormatValue(c Column, v Value) string {
	switch c.Format {
	case FormatText, FormatVideos:
		return v.Text
	}
	if v.Kind != Numeric || v.Missing() {
		return v.Text
	}
	if c.Format == FormatAuto && c.Unit == "" && v.Num == math.Trunc(v.Num) {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	s := FormatNumber(v.Num)
	if c.Unit != "" {
		s += " " + c.Unit
	}
	return s
}
