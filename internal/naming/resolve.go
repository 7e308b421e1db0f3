package naming

import (
	"fmt"
	"path"
	"strings"

	apperrors "github.com/youruser/tokenizer/internal/errors"
)

const (
	// Wildcard is the placeholder replaced by the index.
	Wildcard = "*"
	// MaxIndex is the largest index that fits the three digit format.
	MaxIndex = 999

	AvatarSuffix = "Avatar"
	TokenSuffix  = "Token"
)

// IsWildcard reports whether p contains the placeholder.
func IsWildcard(p string) bool {
	return strings.Contains(p, Wildcard)
}

// Filename returns the fixed target name "<slug>.<suffix>.png".
func Filename(slug, suffix string) string {
	return slug + "." + suffix + ".png"
}

// StorePath returns p in the form the file store lists paths: no leading or
// trailing slash, no "." elements, no doubled separators. The store root
// itself is "". Leading ".." elements are kept for the store to reject.
func StorePath(p string) string {
	c := path.Clean(strings.Trim(strings.TrimSpace(p), "/"))
	if c == "." {
		return ""
	}
	return c
}

// BuildTemplate returns the wildcard template for slug in directory, in store
// form. An existing pattern that already contains the placeholder is kept so
// manual customization survives; only its separators are normalized.
func BuildTemplate(directory, slug, existing string) string {
	if IsWildcard(existing) {
		return StorePath(existing)
	}
	return StorePath(path.Join(directory, slug+"."+TokenSuffix+"-"+Wildcard+".png"))
}

// Candidate substitutes index (zero padded to three digits) for every
// placeholder in template.
func Candidate(template string, index int) string {
	return strings.ReplaceAll(template, Wildcard, fmt.Sprintf("%03d", index))
}

// Resolve returns the first candidate of template, counting up from 1, that
// is not in existing. Candidates are in store form (see StorePath), so
// existing should come from FileSet. Templates without a placeholder are
// returned unchanged. When indices 1 through MaxIndex are all taken it fails
// with INDEX_EXHAUSTED.
func Resolve(template string, existing map[string]struct{}) (string, error) {
	if !IsWildcard(template) {
		return template, nil
	}
	template = StorePath(template)
	for i := 1; i <= MaxIndex; i++ {
		name := Candidate(template, i)
		if _, taken := existing[name]; !taken {
			return name, nil
		}
	}
	return "", apperrors.WithMetadata(apperrors.CodeIndexExhausted,
		fmt.Sprintf("all %d indices of %s are taken", MaxIndex, template),
		map[string]string{"template": template})
}

// FileSet builds the membership set Resolve expects, with every path in
// store form.
func FileSet(files ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[StorePath(f)] = struct{}{}
	}
	return set
}
