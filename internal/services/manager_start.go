package services

import (
	"context"
	"fmt"
)

// Start runs the startup bulk sync, then the background components, then
// the HTTP server. bgCtx bounds everything started here.
func (m *Manager) Start(bgCtx context.Context) error {
	if m.opts.StartupSync && m.cfg.Indexer.SyncOnStart {
		report, err := m.bulkSync.Run(bgCtx)
		if err != nil {
			// Queries keep working against whatever the index holds.
			m.logger.Error("Startup bulk sync failed", "error", err)
		} else {
			m.logger.Info("Startup bulk sync finished",
				"indexed", report.Indexed,
				"failed", report.Failed,
				"duration", report.Duration(),
			)
		}
	}

	if m.opts.RunBackground {
		if err := m.startBackground(bgCtx); err != nil {
			return err
		}
	}

	if m.server != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.server.Start(bgCtx); err != nil {
				m.logger.Error("HTTP server stopped", "error", err)
				m.serverErr <- err
			}
		}()
	}
	return nil
}

func (m *Manager) startBackground(bgCtx context.Context) error {
	mode, err := m.capture.Start(bgCtx)
	if err != nil {
		return fmt.Errorf("failed to start change capture: %w", err)
	}
	m.logger.Info("Change capture started", "mode", mode.String())

	if m.purger != nil {
		if err := m.purger.Start(bgCtx); err != nil {
			return fmt.Errorf("failed to start purge worker: %w", err)
		}
	}

	if m.resync != nil {
		if err := m.resync.Start(bgCtx); err != nil {
			return fmt.Errorf("failed to start resync listener: %w", err)
		}
	}
	return nil
}
