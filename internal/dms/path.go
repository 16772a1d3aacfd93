package dms

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"datum/internal/config"
	"datum/internal/domain/models"
)

// fallbackFilename replaces names that sanitise to nothing.
const fallbackFilename = "document"

// SanitizeFilename reduces a client-supplied name to its base name so it
// cannot escape the purchase folder.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := path.Base(name)
	switch base {
	case "", ".", "..", "/":
		return fallbackFilename
	}
	return base
}

// CanonicalPath returns <base>/<YYYY>/<MM>/<purchaseID>/<filename>, with the
// year and month taken from the purchase date. The filename is shortened,
// keeping its extension, so the path fits config.MaxDocumentPathLength.
func CanonicalPath(base string, purchaseID int64, date models.Date, filename string) string {
	dir := purchaseFolder(base, purchaseID, date)
	room := config.MaxDocumentPathLength - utf8.RuneCountInString(dir) - 1
	return dir + "/" + fitFilename(SanitizeFilename(filename), room)
}

// fitFilename truncates name to at most limit characters, preserving the
// extension when there is room for it.
func fitFilename(name string, limit int) string {
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}
	if limit <= 0 {
		return fallbackFilename
	}
	ext := []rune(path.Ext(name))
	if len(ext) >= limit {
		return string(runes[:limit])
	}
	stem := runes[:len(runes)-len(ext)]
	return string(stem[:limit-len(ext)]) + string(ext)
}

// FileName returns the last segment of a stored document path.
func FileName(docPath string) string {
	return path.Base(docPath)
}

func purchaseFolder(base string, purchaseID int64, date models.Date) string {
	return fmt.Sprintf("%s/%04d/%02d/%d", strings.TrimRight(base, "/"), date.Year, int(date.Month), purchaseID)
}

// ancestors lists the folders that must exist before a document can be
// created for the purchase, outermost first.
func ancestors(base string, purchaseID int64, date models.Date) []string {
	root := strings.TrimRight(base, "/")
	year := fmt.Sprintf("%s/%04d", root, date.Year)
	month := fmt.Sprintf("%s/%02d", year, int(date.Month))
	return []string{year, month, purchaseFolder(base, purchaseID, date)}
}
