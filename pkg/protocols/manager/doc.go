/*
Package manager owns the live protocol configuration of a running process.

The Manager loads a protocol file, publishes it through an atomic pointer,
and can watch the file for changes. Readers call Current and receive an
immutable *protocols.Config. Reloads build a fresh Config and swap it in
whole. A reload that fails validation keeps the last good configuration
active.

Basic usage:

	mgr, err := manager.New(manager.Config{Path: "config/medical_protocols.yaml", Watch: true}, logger)
	if err != nil {
		return err
	}
	if err := mgr.Load(); err != nil {
		return err
	}
	if err := mgr.Watch(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	cfg := mgr.Current()

Editors often replace files by rename, so the watcher observes the parent
directory and filters events down to the configured file.
*/
package manager
