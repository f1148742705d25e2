package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ContainerName generates the fixed container name for a service.
// Pattern: deployline_{serviceName}
//
// Example:
//
//	ContainerName("greeter") // returns "deployline_greeter"
func ContainerName(serviceName string) string {
	return fmt.Sprintf("deployline_%s", serviceName)
}

// ImageTag returns image with a ":latest" tag when it carries none.
//
// Example:
//
//	ImageTag("greeter")          // returns "greeter:latest"
//	ImageTag("registry:5000/app") // returns "registry:5000/app:latest"
func ImageTag(image string) string {
	if image == "" {
		return ""
	}
	lastSlash := strings.LastIndex(image, "/")
	if strings.Contains(image[lastSlash+1:], ":") || strings.Contains(image, "@") {
		return image
	}
	return image + ":latest"
}

// ServiceLabels returns the labels stamped on every container of a service.
func ServiceLabels(serviceName string) map[string]string {
	return map[string]string{
		LabelManaged: "true",
		LabelService: serviceName,
	}
}

// ServiceFilter returns the container list filter selecting a service's containers.
//
// Example:
//
//	ServiceFilter("greeter") // returns {"label": "com.deployline.service=greeter"}
func ServiceFilter(serviceName string) map[string]string {
	return map[string]string{
		"label": LabelService + "=" + serviceName,
	}
}
