package all

import (
	"testing"

	"github.com/iotools/iotools/sniff"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, sniff.AllFormats().Tags(), reg.Formats())
	assert.Equal(t, []sniff.Tag{sniff.Base64, sniff.Bzip2, sniff.Gzip, sniff.LZ4, sniff.PKCS7, sniff.Zstd}, reg.Decoders())
	assert.Equal(t, "magic", reg.Detectors()[0].Name())
	assert.Equal(t, "mime", reg.Detectors()[len(reg.Detectors())-1].Name())
	assert.Nil(t, reg.Decoder(sniff.XZ))
}
