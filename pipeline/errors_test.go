package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("no foreground subject detected")
	err := newError(KindSegmentation, "segment", cause)

	assert.Equal(t, "segmentation error: segment: no foreground subject detected", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "No foreground subject was found in the image.", err.Description())

	wrapped := fmt.Errorf("process: %w", err)
	assert.Equal(t, KindSegmentation, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	kinds := map[Kind]string{
		KindUnknown:      "unknown",
		KindDecode:       "decode",
		KindSegmentation: "segmentation",
		KindComposite:    "composite",
		KindTrim:         "trim",
		KindEncode:       "encode",
		KindWrite:        "write",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
		assert.NotEmpty(t, (&Error{Kind: k, Err: errors.New("x")}).Description())
	}
}
