package buildinfo

import (
	"sort"
	"strings"
)

// Tags contains the build tags detected at init time
var Tags []string

// GetLinkingAndTags tells how the executable was linked and returns
// space separated build tags or the string "none".
func GetLinkingAndTags() (linking, tagString string) {
	linking = "static"
	var tagList []string
	for _, tag := range Tags {
		if tag == "cgo" {
			linking = "dynamic"
		} else {
			tagList = append(tagList, tag)
		}
	}
	if len(tagList) == 0 {
		return linking, "none"
	}
	sort.Strings(tagList)
	return linking, strings.Join(tagList, " ")
}
