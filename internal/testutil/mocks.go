// Package testutil provides shared in-memory collaborator fakes for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesoscale/lineage/pkg/types"
)

// MockObjectStore is an in-memory object store with per-key failure
// injection.
type MockObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failCopy map[string]error // keyed by destination URI
	failDel  map[string]error // keyed by source URI
}

// NewMockObjectStore creates an empty MockObjectStore.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects:  make(map[string][]byte),
		failCopy: make(map[string]error),
		failDel:  make(map[string]error),
	}
}

func objKey(bucket, key string) string { return "s3://" + bucket + "/" + key }

// Seed stores an object directly.
func (m *MockObjectStore) Seed(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objKey(bucket, key)] = body
}

// FailCopyTo makes copies into the given destination fail.
func (m *MockObjectStore) FailCopyTo(bucket, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCopy[objKey(bucket, key)] = err
}

// FailDeleteOf makes deletes of the given object fail.
func (m *MockObjectStore) FailDeleteOf(bucket, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDel[objKey(bucket, key)] = err
}

// Has reports whether an object is stored.
func (m *MockObjectStore) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objKey(bucket, key)]
	return ok
}

// Copy implements the object-store contract.
func (m *MockObjectStore) Copy(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failCopy[objKey(dstBucket, dstKey)]; ok {
		return err
	}
	body, ok := m.objects[objKey(srcBucket, srcKey)]
	if !ok {
		return fmt.Errorf("source object %s not found", objKey(srcBucket, srcKey))
	}
	m.objects[objKey(dstBucket, dstKey)] = body
	return nil
}

// Delete implements the object-store contract.
func (m *MockObjectStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failDel[objKey(bucket, key)]; ok {
		return err
	}
	delete(m.objects, objKey(bucket, key))
	return nil
}

// Exists implements the object-store contract.
func (m *MockObjectStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objKey(bucket, key)]
	return ok, nil
}

// Get implements the object-store contract.
func (m *MockObjectStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objKey(bucket, key))
	}
	return body, nil
}

// Put implements the object-store contract.
func (m *MockObjectStore) Put(_ context.Context, bucket, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objKey(bucket, key)] = body
	return nil
}

// MockLegacyStore is an in-memory legacy document store.
type MockLegacyStore struct {
	mu   sync.Mutex
	docs map[string]*types.GranuleDoc
}

// NewMockLegacyStore creates an empty MockLegacyStore.
func NewMockLegacyStore() *MockLegacyStore {
	return &MockLegacyStore{docs: make(map[string]*types.GranuleDoc)}
}

// Seed stores a granule document.
func (m *MockLegacyStore) Seed(doc types.GranuleDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.GranuleID] = &doc
}

// Get implements the legacy-store contract.
func (m *MockLegacyStore) Get(_ context.Context, granuleID string) (*types.GranuleDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[granuleID]
	if !ok {
		return nil, types.NewNotFoundError("granule %s not found in legacy store", granuleID)
	}
	copied := *doc
	return &copied, nil
}

// Update implements the legacy-store contract.
func (m *MockLegacyStore) Update(_ context.Context, granuleID string, patch types.GranuleDocPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[granuleID]
	if !ok {
		return types.NewNotFoundError("granule %s not found in legacy store", granuleID)
	}
	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	if patch.Published != nil {
		doc.Published = *patch.Published
	}
	if patch.CMRLink != nil {
		doc.CMRLink = *patch.CMRLink
	}
	if patch.Files != nil {
		doc.Files = patch.Files
	}
	if !patch.UpdatedAt.IsZero() {
		doc.UpdatedAt = patch.UpdatedAt
	}
	return nil
}

// Exists implements the legacy-store contract.
func (m *MockLegacyStore) Exists(_ context.Context, granuleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[granuleID]
	return ok, nil
}

// MockRelationalStore records file replacements keyed by granule surrogate
// id.
type MockRelationalStore struct {
	mu       sync.Mutex
	granules map[string]int64 // "granuleID|name|version" → cumulus_id
	Replaced map[int64][]types.FileLocation
	FailWith error
}

// NewMockRelationalStore creates an empty MockRelationalStore.
func NewMockRelationalStore() *MockRelationalStore {
	return &MockRelationalStore{
		granules: make(map[string]int64),
		Replaced: make(map[int64][]types.FileLocation),
	}
}

// SeedGranule registers a granule business key with a surrogate id.
func (m *MockRelationalStore) SeedGranule(granuleID, name, version string, cumulusID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granules[granuleID+"|"+name+"|"+version] = cumulusID
}

// GranuleCumulusID implements the relational-store contract.
func (m *MockRelationalStore) GranuleCumulusID(_ context.Context, granuleID, name, version string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.granules[granuleID+"|"+name+"|"+version]
	return id, ok, nil
}

// ReplaceGranuleFiles implements the relational-store contract.
func (m *MockRelationalStore) ReplaceGranuleFiles(_ context.Context, granuleCumulusID int64, files []types.FileLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Replaced[granuleCumulusID] = files
	return nil
}
