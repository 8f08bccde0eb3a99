// Package poller runs the per-project poll cycle.
//
// Each cycle fetches builds and then deployments from a Provider, keeps
// today's records up to a per-kind limit, hands them to the ci and cd engines
// and resolves two ordered check chains:
//
//	status:        deploying, building, deploy-broken, broken, pending, passing
//	notification:  deploy-failed, build-failed, pending-started, deployed, built
//
// The first check in a chain that returns a status wins. The status chain
// always yields a result because "passing" summarises the current window.
//
// Run re-arms its timer only after a cycle has been published, so cycles
// never overlap. A failed fetch or a panic during classification yields an
// empty cycle and the loop carries on.
package poller
