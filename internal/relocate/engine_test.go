package relocate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesoscale/lineage/internal/testutil"
	"github.com/mesoscale/lineage/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedGranule(objects *testutil.MockObjectStore, legacy *testutil.MockLegacyStore, files ...types.FileLocation) types.GranuleDoc {
	for _, f := range files {
		objects.Seed(f.Bucket, f.Key, []byte("data-"+f.FileName))
	}
	doc := types.GranuleDoc{
		GranuleID:    "MOD09GQ.A2017025.h21v00.006.2017034065104",
		CollectionID: "MOD09GQ___006",
		Status:       types.GranuleCompleted,
		Files:        files,
		Timestamp:    time.Now().UTC(),
	}
	legacy.Seed(doc)
	return doc
}

func TestRelocate_RoundTrip(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	db := testutil.NewMockRelationalStore()
	db.SeedGranule("MOD09GQ.A2017025.h21v00.006.2017034065104", "MOD09GQ", "006", 42)

	files := []types.FileLocation{
		{Bucket: "staging", Key: "in/g1.hdf", FileName: "g1.hdf", Size: 10},
		{Bucket: "staging", Key: "in/g1.jpg", FileName: "g1.jpg", Size: 5},
		{Bucket: "staging", Key: "in/g1.met", FileName: "g1.met", Size: 1},
	}
	seedGranule(objects, legacy, files...)

	engine := New(objects, legacy, db, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
		{Regex: `\.jpg$`, Bucket: "public", Filepath: "browse"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Moved)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Files, 3)
	assert.Equal(t, types.FileLocation{Bucket: "protected", Key: "data/g1.hdf", FileName: "g1.hdf", Size: 10}, result.Files[0])
	assert.Equal(t, types.FileLocation{Bucket: "public", Key: "browse/g1.jpg", FileName: "g1.jpg", Size: 5}, result.Files[1])
	assert.Equal(t, files[2], result.Files[2], "file matching no rule stays put")

	// Objects actually moved.
	assert.True(t, objects.Has("protected", "data/g1.hdf"))
	assert.False(t, objects.Has("staging", "in/g1.hdf"))
	assert.True(t, objects.Has("staging", "in/g1.met"))

	// Both stores reflect exactly the authoritative list.
	assert.Equal(t, result.Files, db.Replaced[42])
	doc, err := legacy.Get(context.Background(), result.GranuleID)
	require.NoError(t, err)
	assert.Equal(t, result.Files, doc.Files)
}

func TestRelocate_FirstMatchingRuleWins(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	seedGranule(objects, legacy, types.FileLocation{Bucket: "staging", Key: "in/g1.hdf", FileName: "g1.hdf"})

	engine := New(objects, legacy, nil, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "first", Filepath: "a"},
		{Regex: `^g1`, Bucket: "second", Filepath: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "first", result.Files[0].Bucket)
	assert.Equal(t, "a/g1.hdf", result.Files[0].Key)
}

func TestRelocate_PartialFailure(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	db := testutil.NewMockRelationalStore()
	db.SeedGranule("MOD09GQ.A2017025.h21v00.006.2017034065104", "MOD09GQ", "006", 7)

	files := []types.FileLocation{
		{Bucket: "staging", Key: "in/a.hdf", FileName: "a.hdf"},
		{Bucket: "staging", Key: "in/b.hdf", FileName: "b.hdf"},
		{Bucket: "staging", Key: "in/c.hdf", FileName: "c.hdf"},
	}
	seedGranule(objects, legacy, files...)
	objects.FailCopyTo("protected", "data/c.hdf", errors.New("no such bucket"))

	engine := New(objects, legacy, db, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
	})

	var partial *types.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.NotNil(t, result)
	assert.Same(t, result, partial.Result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "c.hdf", result.Errors[0].File.FileName)
	assert.Equal(t, 2, result.Moved)

	// A and B moved, C stayed at its original location.
	assert.Equal(t, "protected", result.Files[0].Bucket)
	assert.Equal(t, "protected", result.Files[1].Bucket)
	assert.Equal(t, files[2], result.Files[2])

	// Stores match the authoritative list, never the pre-relocation or a
	// hypothetical fully-moved state.
	assert.Equal(t, result.Files, db.Replaced[7])
	doc, getErr := legacy.Get(context.Background(), result.GranuleID)
	require.NoError(t, getErr)
	assert.Equal(t, result.Files, doc.Files)
}

func TestRelocate_CollisionGuardRejectsWholeOperation(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	db := testutil.NewMockRelationalStore()
	db.SeedGranule("MOD09GQ.A2017025.h21v00.006.2017034065104", "MOD09GQ", "006", 9)

	files := []types.FileLocation{
		{Bucket: "staging", Key: "in/a.hdf", FileName: "a.hdf"},
		{Bucket: "staging", Key: "in/b.hdf", FileName: "b.hdf"},
	}
	seedGranule(objects, legacy, files...)
	objects.Seed("protected", "data/b.hdf", []byte("someone else's object"))

	engine := New(objects, legacy, db, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
	})

	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Nil(t, result)
	require.Len(t, conflict.Collisions, 1)
	assert.Equal(t, "data/b.hdf", conflict.Collisions[0].Key)

	// Zero files moved, zero records updated.
	assert.True(t, objects.Has("staging", "in/a.hdf"))
	assert.False(t, objects.Has("protected", "data/a.hdf"))
	assert.Empty(t, db.Replaced)
	doc, getErr := legacy.Get(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104")
	require.NoError(t, getErr)
	assert.Equal(t, files, doc.Files)
}

func TestRelocate_SelfMoveIsNotACollision(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	seedGranule(objects, legacy, types.FileLocation{Bucket: "protected", Key: "data/a.hdf", FileName: "a.hdf"})

	engine := New(objects, legacy, nil, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Moved)
	assert.True(t, objects.Has("protected", "data/a.hdf"))
}

func TestRelocate_SkipsRelationalWhenGranuleNotMigrated(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()
	db := testutil.NewMockRelationalStore() // no granule seeded

	seedGranule(objects, legacy, types.FileLocation{Bucket: "staging", Key: "in/a.hdf", FileName: "a.hdf"})

	engine := New(objects, legacy, db, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.Empty(t, db.Replaced)

	doc, getErr := legacy.Get(context.Background(), result.GranuleID)
	require.NoError(t, getErr)
	assert.Equal(t, result.Files, doc.Files)
}

func TestRelocate_RewritesMetadataDocument(t *testing.T) {
	objects := testutil.NewMockObjectStore()
	legacy := testutil.NewMockLegacyStore()

	files := []types.FileLocation{
		{Bucket: "staging", Key: "in/g1.hdf", FileName: "g1.hdf"},
		{Bucket: "staging", Key: "in/g1.cmr.xml", FileName: "g1.cmr.xml"},
	}
	seedGranule(objects, legacy, files...)
	objects.Put(context.Background(), "staging", "in/g1.cmr.xml", []byte(
		`<Granule><OnlineAccessURLs><OnlineAccessURL><URL>s3://staging/in/g1.hdf</URL></OnlineAccessURL></OnlineAccessURLs></Granule>`))

	engine := New(objects, legacy, nil, nil, nil)
	result, err := engine.Relocate(context.Background(), "MOD09GQ.A2017025.h21v00.006.2017034065104", []DestinationRule{
		{Regex: `\.hdf$`, Bucket: "protected", Filepath: "data"},
		{Regex: `\.cmr\.xml$`, Bucket: "public", Filepath: "meta"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Moved)

	// Rewritten at its own post-relocation location.
	doc, getErr := objects.Get(context.Background(), "public", "meta/g1.cmr.xml")
	require.NoError(t, getErr)
	assert.Contains(t, string(doc), "s3://protected/data/g1.hdf")
	assert.NotContains(t, string(doc), "s3://staging/in/g1.hdf")
}

func TestRelocate_ValidationErrors(t *testing.T) {
	engine := New(testutil.NewMockObjectStore(), testutil.NewMockLegacyStore(), nil, nil, nil)

	_, err := engine.Relocate(context.Background(), "g", nil)
	var ve *types.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = engine.Relocate(context.Background(), "g", []DestinationRule{{Regex: `[`, Bucket: "b"}})
	assert.ErrorAs(t, err, &ve)

	_, err = engine.Relocate(context.Background(), "g", []DestinationRule{{Regex: `.*`}})
	assert.ErrorAs(t, err, &ve)
}

func TestRelocate_UnknownGranule(t *testing.T) {
	engine := New(testutil.NewMockObjectStore(), testutil.NewMockLegacyStore(), nil, nil, nil)
	_, err := engine.Relocate(context.Background(), "nope", []DestinationRule{{Regex: `.*`, Bucket: "b"}})
	var nf *types.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
