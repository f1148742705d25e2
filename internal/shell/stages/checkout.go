package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/deployline/internal/core/pipeline"
)

// NewCheckoutStage verifies that the source tree is present and buildable.
func NewCheckoutStage(sourceDir, dockerfile string) pipeline.Stage {
	return pipeline.Stage{
		Name: StageCheckout,
		Action: func(ctx context.Context) pipeline.Result {
			abs, err := filepath.Abs(sourceDir)
			if err != nil {
				return pipeline.Failuref("resolve source dir %q: %v", sourceDir, err)
			}

			info, err := os.Stat(abs)
			if err != nil {
				return pipeline.Failuref("source dir %s: %v", abs, err)
			}
			if !info.IsDir() {
				return pipeline.Failuref("source dir %s is not a directory", abs)
			}

			df := filepath.Join(abs, dockerfileOrDefault(dockerfile))
			if _, err := os.Stat(df); err != nil {
				return pipeline.Failuref("dockerfile %s: %v", df, err)
			}

			return pipeline.Success(fmt.Sprintf("source at %s", abs))
		},
	}
}

func dockerfileOrDefault(name string) string {
	if name == "" {
		return "Dockerfile"
	}
	return name
}
