package handler

import "strings"

// extensionOf returns the lowercase file extension (without the dot) of
// path, or "" if there is none. Used to pick a decoder for a resolved
// source path by its declared extension before any magic-byte sniffing.
func extensionOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}
