// Package health provides liveness and readiness endpoints.
//
// # Endpoints
//
//   - /healthz: Liveness probe, the process is running
//   - /readyz: Readiness probe, every registered check passes
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck(health.CheckProtocols, health.ProtocolCheck(manager))
//	checker.RegisterCheck(health.CheckAuditStorage, health.StorageCheck(storage))
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, version, commit, buildTime)
//
// Checks run concurrently, each under the checker's timeout. A check that
// times out counts as unhealthy.
package health
