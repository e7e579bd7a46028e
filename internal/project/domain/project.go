// Package domain holds the portfolio project and image types.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// DefaultLocation is stored when an update leaves the location empty.
const DefaultLocation = "N/A"

// Project is a portfolio entry shown on the public site when Published is set.
type Project struct {
	ID          string
	Slug        string
	Title       string
	Location    string
	Year        int
	Category    string
	Description string
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image is one stored object belonging to a project. Bytes is nil until known.
type Image struct {
	ID          string
	ProjectID   string
	ObjectKey   string
	SortOrder   int
	IsCover     bool
	ContentType string
	Bytes       *int64
	CreatedAt   time.Time
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugDropRe   = regexp.MustCompile(`[^a-z0-9-]`)
	dashesRe     = regexp.MustCompile(`-+`)
	extRe        = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Slugify normalizes s into a URL slug: lowercase, dash separated, [a-z0-9-] only.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = slugDropRe.ReplaceAllString(s, "")
	s = dashesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SafeExt returns ".ext" lowercased when filename ends in an alphanumeric extension, else "".
func SafeExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	ext := filename[i+1:]
	if !extRe.MatchString(ext) {
		return ""
	}
	return "." + strings.ToLower(ext)
}

// ObjectKey builds the blob key for a new image: projects/<projectID>/<name><ext>.
func ObjectKey(projectID, name, filename string) string {
	return "projects/" + projectID + "/" + name + SafeExt(filename)
}

// CoverFirst returns images with the cover moved to the front. Order is otherwise kept.
func CoverFirst(images []*Image) []*Image {
	out := make([]*Image, 0, len(images))
	for _, img := range images {
		if img.IsCover {
			out = append(out, img)
			break
		}
	}
	for _, img := range images {
		if len(out) > 0 && out[0] == img {
			continue
		}
		out = append(out, img)
	}
	return out
}

// PublicImageURL is the public path that streams an image.
func PublicImageURL(imageID string) string {
	return "/api/public/project-images/" + imageID
}

// AdminImageURL is the admin path that streams or uploads an image.
func AdminImageURL(projectID, imageID string) string {
	return "/api/admin/projects/" + projectID + "/images/" + imageID
}
