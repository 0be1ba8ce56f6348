package compute

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// A Device executes data-parallel passes on a fixed number of worker
// goroutines. It plays the role of a GPU command queue: a pass is submitted
// through a Kernel and the call only returns once every work item has
// finished.
type Device struct {
	Name string

	// Number of work groups that may execute concurrently.
	workers int

	statsMutex sync.Mutex
	stats      map[string]*KernelStat
}

// Execution statistics for a kernel.
type KernelStat struct {
	Name string

	// Number of Exec1D calls.
	Invocations int

	// Total number of processed work items.
	Items int64

	// Total wall time spent executing the kernel.
	Time time.Duration
}

// Create a new device. If workers is <= 0 then the device uses one worker
// per available CPU.
func NewDevice(name string, workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Device{
		Name:    name,
		workers: workers,
		stats:   make(map[string]*KernelStat),
	}
}

// Get the number of workers.
func (d *Device) Workers() int {
	return d.workers
}

// Implements Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("%s (%d workers)", d.Name, d.workers)
}

// Create a kernel that runs fn once for every work item id.
func (d *Device) Kernel(name string, fn KernelFunc) *Kernel {
	return &Kernel{
		device: d,
		name:   name,
		fn:     fn,
	}
}

// Get a snapshot of the collected kernel statistics sorted by kernel name.
func (d *Device) Stats() []KernelStat {
	d.statsMutex.Lock()
	defer d.statsMutex.Unlock()

	out := make([]KernelStat, 0, len(d.stats))
	for _, stat := range d.stats {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear the collected kernel statistics.
func (d *Device) ResetStats() {
	d.statsMutex.Lock()
	d.stats = make(map[string]*KernelStat)
	d.statsMutex.Unlock()
}

func (d *Device) recordStat(name string, items int, elapsed time.Duration) {
	d.statsMutex.Lock()
	defer d.statsMutex.Unlock()

	stat, exists := d.stats[name]
	if !exists {
		stat = &KernelStat{Name: name}
		d.stats[name] = stat
	}
	stat.Invocations++
	stat.Items += int64(items)
	stat.Time += elapsed
}
