package gi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/voxel/octree"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

// Statistics for a successful engine build.
type BuildStats struct {
	Generation uuid.UUID
	Octree     octree.BuildStats

	ExtractTime time.Duration
	BuildTime   time.Duration
	ResolveTime time.Duration
	TotalTime   time.Duration

	// Per kernel execution stats.
	Kernels []compute.KernelStat
}

// Render stats as a table.
func (s *BuildStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stage", "Kernel", "Items", "Time"})
	table.Append([]string{"Extract", "---", fmt.Sprintf("%s fragments", humanize.Comma(int64(s.Octree.Fragments))), fmtDuration(s.ExtractTime)})
	table.Append([]string{"Build", "---", fmt.Sprintf("%s nodes", humanize.Comma(int64(s.Octree.Nodes))), fmtDuration(s.BuildTime)})
	table.Append([]string{"Resolve", "---", fmt.Sprintf("%s voxels", humanize.Comma(int64(s.Octree.Voxels))), fmtDuration(s.ResolveTime)})
	table.Append([]string{" ", " ", " ", " "})
	for _, k := range s.Kernels {
		table.Append([]string{"", k.Name, humanize.Comma(k.Items), fmtDuration(k.Time)})
	}
	table.SetFooter([]string{"Total", s.Generation.String(), " ", fmtDuration(s.TotalTime)})
	table.Render()
	return buf.String()
}

func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d.Nanoseconds())/1e6)
}
