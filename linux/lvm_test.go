//go:build linux
// +build linux

package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"machinerun.io/diskprep"
)

func TestPVDataToPV(t *testing.T) {
	var mySize uint64 = 10 * 1024 * 1024

	assert := assert.New(t)

	pvd := lvmPVData{
		Path:         "/dev/nvme0n1p2",
		Size:         mySize,
		VGName:       "data",
		UUID:         "Gf0GD0-hH0M-7x8i-9LQt-AAZm-ke5b-VfWlGR",
		Free:         mySize / 2,
		MetadataSize: 1044480,
		raw: map[string]string{
			"pv_attr": "a--",
		},
	}

	assert.Equal(
		diskprep.PV{
			Name:     "nvme0n1p2",
			Path:     "/dev/nvme0n1p2",
			Size:     mySize,
			VGName:   "data",
			FreeSize: mySize / 2,
		},
		pvd.toPV(),
	)
}

func TestFilterPVs(t *testing.T) {
	assert := assert.New(t)

	pvdatum := []lvmPVData{
		{Path: "/dev/sda2", Size: 1 << 30, VGName: "data"},
		{Path: "/dev/sdb1", Size: 1 << 20},
	}

	all := filterPVs(pvdatum, nil)
	assert.Equal(2, len(all))
	assert.Contains(all, "sda2")
	assert.Contains(all, "sdb1")

	inData := filterPVs(pvdatum, func(pv diskprep.PV) bool { return pv.VGName == "data" })
	assert.Equal(diskprep.PVSet{
		"sda2": {Name: "sda2", Path: "/dev/sda2", Size: 1 << 30, VGName: "data"},
	}, inData)

	assert.Empty(filterPVs(pvdatum, func(diskprep.PV) bool { return false }))
	assert.Empty(filterPVs(nil, nil))
}
