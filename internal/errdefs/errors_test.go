package errdefs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationf(t *testing.T) {
	err := Configurationf("facets %d do not divide %d", 3, 512)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "facets 3 do not divide 512")
}

func TestPartitionErrorUnwrap(t *testing.T) {
	var err error = &PartitionError{Index: 4, Err: io.ErrUnexpectedEOF}

	assert.ErrorIs(t, err, ErrExecutorFailure)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var perr *PartitionError
	if assert.True(t, errors.As(err, &perr)) {
		assert.Equal(t, 4, perr.Index)
	}
}
