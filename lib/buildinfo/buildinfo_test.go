package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLinkingAndTags(t *testing.T) {
	old := Tags
	defer func() { Tags = old }()

	Tags = nil
	linking, tags := GetLinkingAndTags()
	assert.Equal(t, "static", linking)
	assert.Equal(t, "none", tags)

	Tags = []string{"zz", "cgo", "aa"}
	linking, tags = GetLinkingAndTags()
	assert.Equal(t, "dynamic", linking)
	assert.Equal(t, "aa zz", tags)
}

func TestGetOSVersion(t *testing.T) {
	osVersion, osKernel := GetOSVersion()
	assert.NotEmpty(t, osVersion)
	assert.NotEmpty(t, osKernel)
}
