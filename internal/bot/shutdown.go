// internal/bot/shutdown.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ShutdownFunc останавливает один сервис
type ShutdownFunc func(ctx context.Context) error

// ShutdownHandler останавливает зарегистрированные сервисы в обратном
// порядке регистрации (LIFO).
type ShutdownHandler struct {
	logger   *zap.Logger
	mu       sync.Mutex
	services []namedService
	once     sync.Once
	err      error
}

type namedService struct {
	name string
	fn   ShutdownFunc
}

func NewShutdownHandler(logger *zap.Logger) *ShutdownHandler {
	return &ShutdownHandler{logger: logger.Named("shutdown")}
}

// Add регистрирует сервис
func (sh *ShutdownHandler) Add(name string, fn ShutdownFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.services = append(sh.services, namedService{name: name, fn: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// Shutdown останавливает сервисы по одному. Ошибка одного сервиса не
// мешает остановке остальных. Повторный вызов возвращает первый результат.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.once.Do(func() {
		sh.mu.Lock()
		services := make([]namedService, len(sh.services))
		copy(services, sh.services)
		sh.mu.Unlock()

		var errs []error
		for i := len(services) - 1; i >= 0; i-- {
			s := services[i]
			sh.logger.Debug("Shutting down service", zap.String("service", s.name))
			if err := s.fn(ctx); err != nil {
				sh.logger.Error("Failed to shutdown service",
					zap.String("service", s.name),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			}
		}
		sh.err = errors.Join(errs...)
		if sh.err == nil {
			sh.logger.Info("Graceful shutdown completed")
		}
	})
	return sh.err
}
