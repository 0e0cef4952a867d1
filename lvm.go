package diskprep

// VolumeManager provides the logical volume operations needed to turn a
// partition into a volume group.
type VolumeManager interface {
	// HasVG returns true if the vg exists.
	HasVG(vgName string) (bool, error)

	// ScanPVs scans the system for all the PVs and returns the set of PVs that
	// are accepted by the filter function. A nil filter accepts every PV.
	ScanPVs(filter PVFilter) (PVSet, error)

	// CreatePV creates a PV on the block device at devPath.
	CreatePV(devPath string) (PV, error)

	// CreateVG creates a VG with specified name and adds the provided pvs to
	// this vg.
	CreateVG(name string, pvs ...PV) (VG, error)
}

// PVFilter is filter function that returns true if the matching pv is
// accepted false otherwise.
type PVFilter func(PV) bool

// PV wraps a LVM physical volume. A lvm physical volume is the raw
// block device or other disk like devices that provide storage capacity.
type PV struct {
	// Name returns the name of the PV.
	Name string `json:"name"`

	// Path returns the device path of the PV.
	Path string `json:"path"`

	// Size returns the size of the PV.
	Size uint64 `json:"size"`

	// VGName is the name of the VG this PV belongs to, empty if none.
	VGName string `json:"vgName"`

	// FreeSize returns the free size of the PV.
	FreeSize uint64 `json:"freeSize"`
}

// PVSet is a set of PVs indexed by their names.
type PVSet map[string]PV

// VG wraps a LVM volume group. A volume group combines one or more
// physical volumes into storage pools from which logical volumes are
// later allocated.
type VG struct {
	// Name is the name of the volume group.
	Name string `json:"name"`

	// UUID is the volume group's uuid.
	UUID string `json:"uuid"`

	// Size is the current size of the volume group.
	Size uint64 `json:"size"`

	// FreeSpace is the amount free space left in the volume group.
	FreeSpace uint64 `json:"freeSpace"`

	// PVs is the set of PVs that belongs to this VG.
	PVs PVSet `json:"pvs"`
}

// ExtentSize is extent size for lvm
const ExtentSize = 4 * Mebibyte
