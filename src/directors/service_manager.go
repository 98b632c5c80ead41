package directors

import (
	"sync"

	"go.uber.org/zap"
)

type ServiceManager struct {
	ModuleService *ModuleService
	logger        *zap.SugaredLogger
}

var (
	instance *ServiceManager
	once     sync.Once
	mu       sync.RWMutex
)

// GetServiceManager returns the singleton, or an empty manager when
// InitServiceManager has not run yet.
func GetServiceManager() *ServiceManager {
	mu.RLock()
	defer mu.RUnlock()

	if instance == nil {
		return &ServiceManager{}
	}
	return instance
}

// InitServiceManager initializes the singleton once; later calls return the
// first instance.
func InitServiceManager(moduleService *ModuleService, logger *zap.SugaredLogger) *ServiceManager {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		instance = &ServiceManager{
			ModuleService: moduleService,
			logger:        logger,
		}

		if logger != nil {
			logger.Info("ServiceManager singleton initialized")
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// ResetServiceManager clears the singleton so tests can initialize it again.
func ResetServiceManager() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}
