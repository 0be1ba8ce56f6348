package compute

import (
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// The function executed for each work item. Invocations for different ids
// run concurrently and in no particular order; the only shared state they
// may mutate is through atomic operations.
type KernelFunc func(globalID int)

// A named data-parallel operation bound to a device.
type Kernel struct {
	device *Device
	name   string
	fn     KernelFunc
}

// Get kernel name.
func (k *Kernel) Name() string {
	return k.name
}

// Execute the kernel for every id in [offset, offset+globalWorkSize). Ids
// are split into work groups of localWorkSize items; if localWorkSize is 0
// the device picks a group size based on its worker count.
//
// Exec1D blocks until all work items have completed so its return acts as
// a full barrier: writes performed by the pass are visible to the caller
// and to any pass started afterwards. A panic inside a work item is
// reported as an error once the pass drains.
func (k *Kernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	if globalWorkSize < 0 || offset < 0 {
		return 0, fmt.Errorf("compute: invalid work range for kernel %q (offset %d, size %d)", k.name, offset, globalWorkSize)
	}
	if globalWorkSize == 0 {
		return 0, nil
	}

	if localWorkSize <= 0 {
		localWorkSize = k.device.groupSize(globalWorkSize)
	}

	tick := time.Now()

	var group errgroup.Group
	group.SetLimit(k.device.workers)
	end := offset + globalWorkSize
	for groupStart := offset; groupStart < end; groupStart += localWorkSize {
		groupEnd := groupStart + localWorkSize
		if groupEnd > end {
			groupEnd = end
		}

		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("compute: kernel %q failed on work group [%d, %d): %v\n%s", k.name, groupStart, groupEnd, r, debug.Stack())
				}
			}()

			for id := groupStart; id < groupEnd; id++ {
				k.fn(id)
			}
			return nil
		})
	}

	err := group.Wait()
	elapsed := time.Since(tick)
	k.device.recordStat(k.name, globalWorkSize, elapsed)
	return elapsed, err
}

// Pick a work group size that gives each worker a few groups to balance
// uneven work items.
func (d *Device) groupSize(globalWorkSize int) int {
	size := globalWorkSize / (d.workers * 4)
	if size < 1 {
		size = 1
	}
	return size
}
