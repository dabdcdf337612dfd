package services

import (
	"context"

	"github.com/syntrixbase/userindex/internal/logging"
)

// Shutdown stops components in reverse start order and releases the index
// and the store. It is safe to call after a partial Init.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.server != nil {
		if err := m.server.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping HTTP server", "error", err)
		}
	}

	if m.resync != nil {
		if err := m.resync.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping resync listener", "error", err)
		}
	}
	if m.purger != nil {
		if err := m.purger.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping purge worker", "error", err)
		}
	}
	if m.capture != nil {
		if err := m.capture.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping change capture", "error", err)
		}
	}

	m.logger.Info("Waiting for background tasks to finish...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for background tasks")
	}

	if m.resolver != nil {
		m.resolver.Close()
	}
	if m.backend != nil {
		if err := m.backend.Close(); err != nil {
			m.logger.Warn("Error closing search index", "error", err)
		}
	}
	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			m.logger.Warn("Error closing primary store", "error", err)
		}
	}

	if err := logging.Shutdown(); err != nil {
		m.logger.Warn("Error closing log files", "error", err)
	}
}
