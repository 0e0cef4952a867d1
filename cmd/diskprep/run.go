package main

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"machinerun.io/diskprep/linux"
	"machinerun.io/diskprep/provision"
)

func runProvision(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.Errorf("unexpected arguments: %v", c.Args().Slice())
	}

	lock, err := holdLock(c)
	if err != nil {
		return err
	}
	defer lock.Close()

	cfg := configFromContext(c)

	log.WithFields(log.Fields{
		"vg":     cfg.VGName,
		"marker": cfg.Marker,
		"reboot": cfg.Reboot,
	}).Info("provisioning")

	return provision.Run(linux.System(c.String("scratch")), linux.VolumeManager(), cfg)
}

// holdLock takes the lock that keeps commands which mount partitions from
// running at the same time.
func holdLock(c *cli.Context) (io.Closer, error) {
	lock, err := provision.Lock(c.String("lock"))
	if err != nil {
		return nil, err
	}

	log.WithField("lock", c.String("lock")).Debug("holding lock")

	return lock, nil
}
