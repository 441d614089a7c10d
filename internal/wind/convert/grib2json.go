package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/4000degrees/airmq-wind-server/internal/common"
)

// maxToolOutput bounds how much of the converter's combined output is
// carried into an error message.
const maxToolOutput = 200

// Grib2JSON converts GRIB2 files to the JSON layout served to clients by
// shelling out to the grib2json command line tool.
type Grib2JSON struct {
	path    string
	timeout time.Duration
}

// NewGrib2JSON returns a converter that invokes the tool at path. A zero
// timeout disables the per-invocation deadline.
func NewGrib2JSON(path string, timeout time.Duration) *Grib2JSON {
	return &Grib2JSON{
		path:    path,
		timeout: timeout,
	}
}

// Convert runs the tool against gribPath and writes the JSON artifact to
// outPath. The tool's own exit status decides success.
func (g *Grib2JSON) Convert(ctx context.Context, gribPath, outPath string) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.path, "--data", "--output", outPath, "--names", "--compact", gribPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("grib2json timed out after %s", g.timeout)
		}
		return fmt.Errorf("grib2json failed: %v: %s", err, common.Truncate(string(out), maxToolOutput))
	}
	return nil
}
