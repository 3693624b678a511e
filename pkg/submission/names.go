package submission

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// nowFunc is swappable in tests.
var nowFunc = func() time.Time { return time.Now().UTC() }

// nameEntropy returns a short random tail for generated submission names,
// guarding against collisions when two submissions are created in the same
// nanosecond tick.
func nameEntropy() string {
	return strings.ToUpper(uuid.NewString()[:4])
}
