package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/opsweep/opsweep/internal/domain/resource"
)

// MockCatalog is an in-memory resource.Catalog. Deletion removes the
// resource immediately unless its id is listed in KeepAfterDelete,
// which simulates an asynchronous deletion that never completes.
type MockCatalog struct {
	mu sync.Mutex

	// Resources holds the live inventory, keyed by type.
	Resources map[resource.Type][]resource.Descriptor

	// Configs maps resource id to its configuration document. Missing
	// entries read as an empty document, not an error.
	Configs map[string]json.RawMessage

	// SecretNames maps a secret store id to its manifest.
	SecretNames map[string][]string

	// Error injection, per operation.
	ListErrs       map[resource.Type]error
	ReadErrs       map[string]error
	DeleteErrs     map[string]error
	UpdateErr      error
	TagErr         error
	SecretNamesErr error

	// KeepAfterDelete lists ids that stay visible after deletion.
	KeepAfterDelete map[string]bool

	// Call recording.
	ListCalls   int
	DeleteCalls []string
	UpdateCalls []string
	TagCalls    []string
}

// NewMockCatalog creates an empty mock catalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		Resources:   make(map[resource.Type][]resource.Descriptor),
		Configs:     make(map[string]json.RawMessage),
		SecretNames: make(map[string][]string),
	}
}

// Add places a resource in the inventory.
func (m *MockCatalog) Add(d resource.Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resources[d.Type] = append(m.Resources[d.Type], d)
}

func (m *MockCatalog) ListResources(ctx context.Context, scope string, t resource.Type) ([]resource.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if err := m.ListErrs[t]; err != nil {
		return nil, err
	}
	var out []resource.Descriptor
	for _, d := range m.Resources[t] {
		if d.Scope == scope {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockCatalog) DeleteResource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	if err := m.DeleteErrs[id]; err != nil {
		return err
	}
	if !m.KeepAfterDelete[id] {
		m.removeLocked(id)
	}
	return nil
}

func (m *MockCatalog) UpdateResource(ctx context.Context, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, id)
	return m.UpdateErr
}

func (m *MockCatalog) TagResource(ctx context.Context, id string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TagCalls = append(m.TagCalls, id)
	if m.TagErr != nil {
		return m.TagErr
	}
	for t, list := range m.Resources {
		for i, d := range list {
			if d.ID == id {
				if d.Tags == nil {
					d.Tags = make(map[string]string)
				}
				for k, v := range tags {
					d.Tags[k] = v
				}
				m.Resources[t][i] = d
			}
		}
	}
	return nil
}

func (m *MockCatalog) ReadConfiguration(ctx context.Context, id string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ReadErrs[id]; err != nil {
		return nil, err
	}
	if cfg, ok := m.Configs[id]; ok {
		return cfg, nil
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockCatalog) ListSecretNames(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SecretNamesErr != nil {
		return nil, m.SecretNamesErr
	}
	return m.SecretNames[id], nil
}

// Has reports whether a resource id is still in the inventory.
func (m *MockCatalog) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.Resources {
		for _, d := range list {
			if d.ID == id {
				return true
			}
		}
	}
	return false
}

func (m *MockCatalog) removeLocked(id string) {
	for t, list := range m.Resources {
		kept := list[:0]
		for _, d := range list {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		m.Resources[t] = kept
	}
}

// MockBlobStore is an in-memory blob store recording write order.
type MockBlobStore struct {
	mu       sync.Mutex
	Blobs    map[string][]byte
	Keys     []string
	WriteErr error
}

// NewMockBlobStore creates an empty mock store.
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{Blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Write(ctx context.Context, key string, blob []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return "", m.WriteErr
	}
	m.Blobs[key] = blob
	m.Keys = append(m.Keys, key)
	return "mock://" + key, nil
}

func (m *MockBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.Blobs[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return blob, nil
}

func (m *MockBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, k := range m.Keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// MockPrompter answers confirmation prompts from canned results.
type MockPrompter struct {
	ConfirmResult bool
	PhraseResult  bool
	Prompts       []string
}

func (m *MockPrompter) Confirm(prompt string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.ConfirmResult, nil
}

func (m *MockPrompter) ConfirmPhrase(prompt, phrase string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.PhraseResult, nil
}

// MockNotifier records delivered notifications.
type MockNotifier struct {
	mu       sync.Mutex
	Subjects []string
	Err      error
}

func (m *MockNotifier) Notify(ctx context.Context, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subjects = append(m.Subjects, subject)
	return m.Err
}
