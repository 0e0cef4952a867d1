package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"machinerun.io/diskprep"
	"machinerun.io/diskprep/linux"
	"machinerun.io/diskprep/provision"
)

//nolint:gochecknoglobals
var planCommand = cli.Command{
	Name:   "plan",
	Usage:  "Find the root partition and show the split without changing anything",
	Action: planShow,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Value: false,
			Usage: "Print the plan as json",
		},
	},
}

//nolint:gochecknoglobals
var statusCommand = cli.Command{
	Name:   "status",
	Usage:  "Report whether the disk has been provisioned",
	Action: statusShow,
}

//nolint:gochecknoglobals
var showCommand = cli.Command{
	Name:      "show",
	Usage:     "Show the partition table of disks",
	ArgsUsage: "disk [disk...]",
	Action:    diskShow,
}

func printTextTable(data [][]string) {
	var lengths = make([]int, len(data[0]))

	for _, line := range data {
		for i, field := range line {
			if len(field) > lengths[i] {
				lengths[i] = len(field)
			}
		}
	}

	fmts := make([]string, len(lengths))

	for i, l := range lengths {
		fmts[i] = fmt.Sprintf("%%-%ds", l)
	}

	pfmt := strings.Join(fmts, " | ") + " |\n"

	for _, line := range data {
		s := make([]interface{}, len(line))
		for i, v := range line {
			s[i] = v
		}

		fmt.Printf(pfmt, s...)
	}
}

func planShow(c *cli.Context) error {
	lock, err := holdLock(c)
	if err != nil {
		return err
	}
	defer lock.Close()

	cfg := configFromContext(c)

	st, err := provision.Discover(linux.System(c.String("scratch")), cfg)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		jbytes, err := json.MarshalIndent(&st, "", "  ")
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", string(jbytes))

		return nil
	}

	root := st.Plan.Root()
	data := st.Root.Sibling(st.Plan.DataNumber)

	printTextTable([][]string{
		{"Partition", "Start", "Last", "Sectors"},
		{st.Root.Path() + " (was)", u64(st.Plan.Original.Start), u64(st.Plan.Original.Last), u64(st.Plan.Original.Size())},
		{st.Root.Path(), u64(root.Start), u64(root.Last), u64(root.Size())},
		{data.Path(), u64(st.Plan.DataStart), u64(st.Plan.DataLast), u64(st.Plan.DataLast - st.Plan.DataStart + 1)},
	})

	fmt.Printf("\nfilesystem: %d of %d byte blocks used, shrink to %d blocks\n",
		st.UsedBlocks, st.BlockSize, st.TargetBlocks)
	fmt.Printf("sectors: %d bytes, root keeps %d sectors\n", st.SectorSize, st.TargetSectors)

	return nil
}

func u64(v uint64) string {
	return fmt.Sprintf("%d", v)
}

func statusShow(c *cli.Context) error {
	cfg := configFromContext(c)
	vm := linux.VolumeManager()

	done, err := provision.Gate(vm, cfg)
	if err != nil {
		return err
	}

	if !done {
		fmt.Printf("volume group %s does not exist: not provisioned\n", cfg.VGName)
		return nil
	}

	pvs, err := vm.ScanPVs(func(pv diskprep.PV) bool { return pv.VGName == cfg.VGName })
	if err != nil {
		return err
	}

	fmt.Printf("volume group %s exists: provisioned\n", cfg.VGName)

	for _, pv := range pvs {
		fmt.Printf("  %s %d bytes\n", pv.Path, pv.Size)
	}

	return nil
}

func diskShow(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("no disk given")
	}

	mysys := linux.System(c.String("scratch"))

	for _, path := range c.Args().Slice() {
		if !strings.HasPrefix(path, "/") {
			path = "/dev/" + path
		}

		d, err := mysys.ScanDisk(path)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n", d.String(), d.Details())
	}

	return nil
}
