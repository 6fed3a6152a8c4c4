// Package store provides volatile, process-local repositories for guidelines
// and tool definitions. They are safe for concurrent access and suited for
// tests, demos and composition layers that load their catalog at startup.
package store
