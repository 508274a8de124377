package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollectionID(t *testing.T) {
	name, version, err := ParseCollectionID("MOD09GQ___006")
	require.NoError(t, err)
	assert.Equal(t, "MOD09GQ", name)
	assert.Equal(t, "006", version)

	c := CollectionRecord{Name: "MOD09GQ", Version: "006"}
	assert.Equal(t, "MOD09GQ___006", c.ID())

	for _, bad := range []string{"", "MOD09GQ", "MOD09GQ___", "___006"} {
		_, _, err := ParseCollectionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileLocation(t *testing.T) {
	a := FileLocation{Bucket: "b", Key: "k/f.hdf", FileName: "f.hdf"}
	assert.Equal(t, "s3://b/k/f.hdf", a.URI())
	assert.True(t, a.Same(FileLocation{Bucket: "b", Key: "k/f.hdf", FileName: "other"}))
	assert.False(t, a.Same(FileLocation{Bucket: "b2", Key: "k/f.hdf"}))
}

func TestErrorTaxonomyMatchesWithErrorsAs(t *testing.T) {
	var nf *NotFoundError
	err := error(NewNotFoundError("granule %s not found", "g-1"))
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Message, "g-1")

	var uv *UniqueViolationError
	err = error(&UniqueViolationError{Table: "executions", Message: "dup"})
	require.ErrorAs(t, err, &uv)

	var conflict *ConflictError
	err = error(&ConflictError{Collisions: []FileLocation{{Bucket: "b", Key: "k"}}})
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "s3://b/k")

	var ve *ValidationError
	require.ErrorAs(t, error(NewValidationError("bad rule")), &ve)

	var partial *PartialFailureError
	err = error(&PartialFailureError{
		Reason: "one move failed",
		Result: &RelocationResult{GranuleID: "g-1", Errors: []FileMoveError{{Reason: "boom"}}},
	})
	require.ErrorAs(t, err, &partial)
	assert.Contains(t, partial.Error(), "g-1")

	assert.False(t, errors.As(error(NewValidationError("x")), &nf), "taxonomy types are distinct")
}
