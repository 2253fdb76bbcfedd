// Package sniff holds the types shared by the detectors, decoders
// and the orchestrator which unwraps nested encodings, along with
// configuration and logging.
package sniff

import (
	"sort"
	"strings"
)

// Tag names a format. Tags are upper case.
type Tag string

// Unknown is the reserved tag returned when nothing matched.
const Unknown Tag = "UNKNOWN"

// Built in format tags
const (
	Base64 Tag = "BASE64"
	Gzip   Tag = "GZIP"
	Bzip2  Tag = "BZIP2"
	Zstd   Tag = "ZSTD"
	LZ4    Tag = "LZ4"
	XZ     Tag = "XZ"
	PKCS7  Tag = "PKCS7"
	PDF    Tag = "PDF"
	XML    Tag = "XML"
	HTML   Tag = "HTML"
	JSON   Tag = "JSON"
	Text   Tag = "TEXT"
	Zip    Tag = "ZIP"
	PNG    Tag = "PNG"
	JPEG   Tag = "JPEG"
	GIF    Tag = "GIF"
	TIFF   Tag = "TIFF"
)

var builtinTags = []Tag{
	Base64, Gzip, Bzip2, Zstd, LZ4, XZ, PKCS7,
	PDF, XML, HTML, JSON, Text, Zip, PNG, JPEG, GIF, TIFF,
}

// ParseTag normalises s into a Tag
func ParseTag(s string) Tag {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Unknown
	}
	return Tag(s)
}

// FormatID identifies a detected format and optionally its version.
//
// Two FormatIDs are Equal if their tags are the same, regardless of
// version.
type FormatID struct {
	Format  Tag
	Version string
}

// UnknownFormat is the FormatID returned when nothing matched
var UnknownFormat = FormatID{Format: Unknown}

// NewFormatID makes a FormatID with no version
func NewFormatID(tag Tag) FormatID {
	if tag == "" {
		tag = Unknown
	}
	return FormatID{Format: tag}
}

// NewFormatIDVersion makes a FormatID with a version
func NewFormatIDVersion(tag Tag, version string) FormatID {
	id := NewFormatID(tag)
	id.Version = version
	return id
}

// IsUnknown returns true if this is the UNKNOWN format
func (id FormatID) IsUnknown() bool {
	return id.Format == Unknown || id.Format == ""
}

// Equal compares the tags of two FormatIDs
func (id FormatID) Equal(other FormatID) bool {
	return id.tag() == other.tag()
}

func (id FormatID) tag() Tag {
	if id.Format == "" {
		return Unknown
	}
	return id.Format
}

// String renders the FormatID for diagnostics
func (id FormatID) String() string {
	if id.Version == "" {
		return "Format:" + string(id.tag())
	}
	return "Format:" + string(id.tag()) + ",version:" + id.Version
}

// Set is a set of enabled format tags
type Set map[Tag]struct{}

// NewSet makes a Set from the tags passed in
func NewSet(tags ...Tag) Set {
	s := make(Set, len(tags))
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
	return s
}

// AllFormats returns a Set of every built in tag
func AllFormats() Set {
	return NewSet(builtinTags...)
}

// ParseSet parses a comma separated list of tags.
//
// An empty string returns an empty Set.
func ParseSet(s string) Set {
	set := Set{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		set[ParseTag(part)] = struct{}{}
	}
	return set
}

// Contains returns true if tag is in the set
func (s Set) Contains(tag Tag) bool {
	_, ok := s[tag]
	return ok
}

// Intersects returns true if any of tags is in the set
func (s Set) Intersects(tags []Tag) bool {
	for _, tag := range tags {
		if s.Contains(tag) {
			return true
		}
	}
	return false
}

// Add tags to the set
func (s Set) Add(tags ...Tag) {
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
}

// Tags returns the tags in the set sorted
func (s Set) Tags() []Tag {
	tags := make([]Tag, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// String returns the tags in the set as a comma separated list
func (s Set) String() string {
	var out strings.Builder
	for i, tag := range s.Tags() {
		if i > 0 {
			out.WriteRune(',')
		}
		out.WriteString(string(tag))
	}
	return out.String()
}
