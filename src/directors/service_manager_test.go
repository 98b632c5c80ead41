package directors

import (
	"testing"

	"clientdesk/src/settings"
	"clientdesk/src/storage"

	"github.com/stretchr/testify/assert"
)

// TestServiceManagerSingleton verifies that the first initialization wins
// until the manager is reset.
func TestServiceManagerSingleton(t *testing.T) {
	ResetServiceManager()
	t.Cleanup(ResetServiceManager)

	assert.Nil(t, GetServiceManager().ModuleService)

	backend := storage.NewMemoryBackend()
	first := NewModuleService(backend, backend, nil, settings.Defaults())
	second := NewModuleService(backend, backend, nil, settings.Defaults())

	m := InitServiceManager(first, nil)
	assert.Same(t, first, m.ModuleService)
	assert.Same(t, first, InitServiceManager(second, nil).ModuleService)
	assert.Same(t, first, GetServiceManager().ModuleService)

	ResetServiceManager()
	assert.Same(t, second, InitServiceManager(second, nil).ModuleService)
}
