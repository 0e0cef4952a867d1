package main

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"machinerun.io/diskprep/provision"
)

var version string

//nolint:gochecknoglobals
var defaults = provision.DefaultConfig()

//nolint:gochecknoglobals
var configFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "vg",
		Value:   defaults.VGName,
		Usage:   "Name of the volume group created on the data partition",
		EnvVars: []string{"DISKPREP_VG"},
	},
	&cli.StringFlag{
		Name:    "marker",
		Value:   defaults.Marker,
		Usage:   "Path of the marker file inside the root filesystem",
		EnvVars: []string{"DISKPREP_MARKER"},
	},
	&cli.StringFlag{
		Name:    "boot-config",
		Value:   defaults.BootConfig,
		Usage:   "Path of the active boot loader configuration inside the root filesystem",
		EnvVars: []string{"DISKPREP_BOOT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "boot-backup",
		Value:   defaults.BootBackup,
		Usage:   "Path of the saved boot loader configuration inside the root filesystem",
		EnvVars: []string{"DISKPREP_BOOT_BACKUP"},
	},
	&cli.StringFlag{
		Name:    "scratch",
		Value:   "/run/diskprep",
		Usage:   "Directory scratch mount points are created in",
		EnvVars: []string{"DISKPREP_SCRATCH"},
	},
	&cli.StringFlag{
		Name:    "lock",
		Value:   "/run/diskprep.lock",
		Usage:   "Lock file held while provisioning",
		EnvVars: []string{"DISKPREP_LOCK"},
	},
	&cli.IntFlag{
		Name:    "wait-attempts",
		Value:   defaults.WaitAttempts,
		Usage:   "Number of times to look for the new data partition",
		EnvVars: []string{"DISKPREP_WAIT_ATTEMPTS"},
	},
	&cli.DurationFlag{
		Name:    "wait-interval",
		Value:   defaults.WaitInterval,
		Usage:   "Time between looks for the new data partition",
		EnvVars: []string{"DISKPREP_WAIT_INTERVAL"},
	},
	&cli.BoolFlag{
		Name:    "no-reboot",
		Value:   false,
		Usage:   "Do not reboot when done",
		EnvVars: []string{"DISKPREP_NO_REBOOT"},
	},
	&cli.BoolFlag{
		Name:    "debug",
		Value:   false,
		Usage:   "Log debug messages",
		EnvVars: []string{"DISKPREP_DEBUG"},
	},
}

// configFromContext returns the default configuration with the flags applied.
func configFromContext(c *cli.Context) provision.Config {
	cfg := provision.DefaultConfig()

	cfg.VGName = c.String("vg")
	cfg.Marker = c.String("marker")
	cfg.BootConfig = c.String("boot-config")
	cfg.BootBackup = c.String("boot-backup")
	cfg.WaitAttempts = c.Int("wait-attempts")
	cfg.WaitInterval = c.Duration("wait-interval")
	cfg.Reboot = !c.Bool("no-reboot")

	return cfg
}

func setupLogging(c *cli.Context) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	log.SetOutput(os.Stderr)

	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	return nil
}

func main() {
	app := &cli.App{
		Name:    "diskprep",
		Version: version,
		Usage:   "Split a freshly imaged root disk into a root partition and an LVM data partition",
		Flags:   configFlags,
		Before:  setupLogging,
		Action:  runProvision,
		Commands: []*cli.Command{
			&planCommand,
			&statusCommand,
			&showCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
