package deviceagent

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// RunParallel runs fn once per device, concurrently. Sessions share no
// mutable state, so no coordination beyond the errgroup is needed; the
// first error cancels the derived context handed to the remaining calls.
// A panic inside fn is recovered and reported as that device's error
// instead of tearing down the process.
func RunParallel(ctx context.Context, devices []*Device, fn func(ctx context.Context, d *Device) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, device := range devices {
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("device %s: panic: %v\n%s", device.Serial(), r, debug.Stack())
				}
			}()
			return fn(groupCtx, device)
		})
	}
	return group.Wait()
}
