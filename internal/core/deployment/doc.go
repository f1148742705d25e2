// Package deployment provides pure functions for planning a service redeploy.
//
// The functional core decides which previous instances of a service must be
// stopped and removed and what the replacement container looks like. It
// performs no I/O; the imperative shell (internal/shell/deploy) executes the
// plan via the Docker API in the order the plan dictates.
//
// # Functions
//
//   - Naming: ContainerName, ImageTag
//   - Labels: ServiceLabels, ServiceFilter
//   - Planning: PlanReplacement
//
// # Usage
//
//	plan := deployment.PlanReplacement(service, existing)
//	for _, id := range plan.Remove { /* stop, then remove */ }
//	/* create plan.Container, then start it */
package deployment
