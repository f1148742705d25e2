// Package stages provides the concrete actions of the deployment pipeline.
//
// Each constructor returns a pipeline.Stage whose action talks to the outside
// world (filesystem, shell, Docker, HTTP) and reports back a pipeline.Result.
// NewDeploymentPipeline assembles them in their fixed order.
package stages
