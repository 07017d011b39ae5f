package ecolens

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Role identifies which side of the product label an image shows. A slot
// holds at most one image per role.
type Role string

const (
	RoleFront Role = "front"
	RoleBack  Role = "back"
)

// Prefix returns the filename prefix encoding the role, e.g. "front-".
func (r Role) Prefix() string {
	return string(r) + "-"
}

// Valid reports whether r is one of the two permitted roles.
func (r Role) Valid() bool {
	return r == RoleFront || r == RoleBack
}

// Entry describes a single file stored in a slot.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Role derives the entry's role from its filename prefix. The empty string
// is returned for files that carry neither prefix.
func (e Entry) Role() Role {
	switch {
	case strings.HasPrefix(e.Name, RoleFront.Prefix()):
		return RoleFront
	case strings.HasPrefix(e.Name, RoleBack.Prefix()):
		return RoleBack
	default:
		return ""
	}
}

// SlotStatus is a point-in-time view of a slot's contents. Files whose
// extension is outside the image allow-list are excluded entirely.
type SlotStatus struct {
	Slot  string  `json:"slot"`
	Front []Entry `json:"front"`
	Back  []Entry `json:"back"`
	All   []Entry `json:"all"`
}

// FrontEntry returns the current front image, or false if the slot has none.
func (s *SlotStatus) FrontEntry() (Entry, bool) {
	if len(s.Front) == 0 {
		return Entry{}, false
	}
	return s.Front[0], true
}

// BackEntry returns the current back image, or false if the slot has none.
func (s *SlotStatus) BackEntry() (Entry, bool) {
	if len(s.Back) == 0 {
		return Entry{}, false
	}
	return s.Back[0], true
}

// UploadRequest carries one uploaded image into the allocator.
type UploadRequest struct {
	Slot     string
	FileName string // client-supplied original filename, used for the extension
	MimeType string // declared MIME type
	Size     int64
	Reader   io.Reader
}

// UploadResult reports where an accepted upload ended up.
type UploadResult struct {
	Slot     string `json:"slot"`
	FileName string `json:"file_name"`
	Role     Role   `json:"role"`
	Size     int64  `json:"size"`
	// Evicted lists filenames deleted to make room for this upload.
	Evicted []string `json:"evicted,omitempty"`
	// TotalImages is the number of image files in the slot after the upload.
	TotalImages int `json:"total_images"`
}

// MaxUploadSize is the default cap on a single uploaded image.
const MaxUploadSize int64 = 5 << 20 // 5 MiB

// allowedExtensions is the image allow-list. Anything else in a slot
// directory is ignored when computing slot state.
var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// IsImageFile reports whether name carries an allow-listed image extension.
func IsImageFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}
