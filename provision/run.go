package provision

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"machinerun.io/diskprep"
)

// Run runs the whole pipeline. When the volume group already exists the root
// partition is taken from the volume group's physical volume and only Restore
// and Reboot run. Any stage failure stops the run and is returned as a
// *StageError.
func Run(sys diskprep.System, vm diskprep.VolumeManager, cfg Config) error {
	var st State

	fail := func(stage Stage, err error) error {
		log.WithFields(st.Fields()).WithFields(log.Fields{"stage": stage, "error": err}).Error("provisioning failed")
		return &StageError{Stage: stage, State: st, Err: err}
	}

	done, err := Gate(vm, cfg)
	if err != nil {
		return fail(StageGate, err)
	}

	if done {
		root, err := rootFromVG(vm, cfg)
		if err != nil {
			return fail(StageGate, err)
		}

		st.Root = root

		log.WithFields(st.Fields()).WithField("vg", cfg.VGName).Info("volume group exists, skipping to restore")
	} else {
		if st, err = Discover(sys, cfg); err != nil {
			return fail(StageDiscover, err)
		}

		if err := Shrink(sys, st); err != nil {
			return fail(StageShrink, err)
		}

		if st, err = Surgery(sys, st, cfg); err != nil {
			return fail(StageSurgery, err)
		}

		if err := ProvisionLVM(vm, st, cfg); err != nil {
			return fail(StageProvision, err)
		}
	}

	if err := Restore(sys, st.Root, cfg); err != nil {
		return fail(StageRestore, err)
	}

	if err := Reboot(sys, cfg); err != nil {
		return fail(StageReboot, err)
	}

	return nil
}

// rootFromVG returns the root partition of a provisioned disk: the partition
// just before the volume group's only physical volume.
func rootFromVG(vm diskprep.VolumeManager, cfg Config) (diskprep.DeviceName, error) {
	pvs, err := vm.ScanPVs(func(pv diskprep.PV) bool { return pv.VGName == cfg.VGName })
	if err != nil {
		return diskprep.DeviceName{}, errors.Wrapf(err, "scanning physical volumes of %s", cfg.VGName)
	}

	if len(pvs) != 1 {
		return diskprep.DeviceName{}, fmt.Errorf("volume group %s has %d physical volumes, expected 1",
			cfg.VGName, len(pvs))
	}

	for _, pv := range pvs {
		data, err := diskprep.ParseDeviceName(pv.Path)
		if err != nil {
			return diskprep.DeviceName{}, err
		}

		if data.Number < 2 {
			return diskprep.DeviceName{}, fmt.Errorf("physical volume %s of %s is the first partition on %s",
				pv.Path, cfg.VGName, data.Disk)
		}

		return data.Sibling(data.Number - 1), nil
	}

	return diskprep.DeviceName{}, nil
}
