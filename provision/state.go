package provision

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"machinerun.io/diskprep"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageGate      Stage = "gate"
	StageDiscover  Stage = "discover"
	StageShrink    Stage = "shrink"
	StageSurgery   Stage = "surgery"
	StageProvision Stage = "provision"
	StageRestore   Stage = "restore"
	StageReboot    Stage = "reboot"
)

// State is what the pipeline knows about the root partition. Discover fills
// in everything up to the split and Surgery adds the data partition.
type State struct {
	// Root is the partition that carried the marker.
	Root diskprep.DeviceName `json:"root"`

	BlockSize    uint64 `json:"blockSize"`
	UsedBlocks   uint64 `json:"usedBlocks"`
	TargetBlocks uint64 `json:"targetBlocks"`

	SectorSize    uint64 `json:"sectorSize"`
	TargetSectors uint64 `json:"targetSectors"`

	// Plan is the split of the root partition.
	Plan diskprep.SplitPlan `json:"plan"`

	// Data is the new partition holding the volume group.
	Data diskprep.DeviceName `json:"data"`
}

// Fields returns the state's known values as log fields.
func (s State) Fields() log.Fields {
	f := log.Fields{}

	if s.Root.Disk == "" {
		return f
	}

	f["disk"] = s.Root.Disk
	f["partition"] = s.Root.Number

	if s.TargetBlocks != 0 {
		f["blockSize"] = s.BlockSize
		f["usedBlocks"] = s.UsedBlocks
		f["targetBlocks"] = s.TargetBlocks
		f["sectorSize"] = s.SectorSize
		f["targetSectors"] = s.TargetSectors
	}

	if s.Plan.DataNumber != 0 {
		f["split"] = s.Plan.String()
	}

	return f
}

func (s State) String() string {
	if s.Root.Disk == "" {
		return "no root partition"
	}

	str := fmt.Sprintf("disk %s partition %d", s.Root.Disk, s.Root.Number)

	if s.TargetBlocks != 0 {
		str += fmt.Sprintf(" used %d blocks, target %d blocks of %d bytes = %d sectors of %d bytes",
			s.UsedBlocks, s.TargetBlocks, s.BlockSize, s.TargetSectors, s.SectorSize)
	}

	if s.Plan.DataNumber != 0 {
		str += ", " + s.Plan.String()
	}

	return str
}

// StageError is returned by Run when a stage fails. It carries the state in
// effect at the time since none of the stages can be rolled back.
type StageError struct {
	Stage Stage
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %s", e.Stage, e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
