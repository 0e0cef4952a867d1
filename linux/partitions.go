//go:build linux
// +build linux

package linux

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
	"strings"
)

// memory backed and mapped devices are never candidates for the root disk.
var skipKnameRegex = regexp.MustCompile(`^(loop|ram|zram|dm-|sr|fd|md)`) //nolint:gochecknoglobals

// parseProcPartitions returns the kernel names listed in the content of
// /proc/partitions:
//
//	major minor  #blocks  name
//
//	   8        0   20971520 sda
//	   8        1   20970496 sda1
func parseProcPartitions(content []byte) []string {
	names := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(content))

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 || fields[0] == "major" {
			continue
		}

		names = append(names, fields[3])
	}

	return names
}

// filterPartitions drops skipped devices and anything isPart says is not a
// partition.
func filterPartitions(names []string, isPart func(string) bool) []string {
	parts := []string{}

	for _, name := range names {
		if skipKnameRegex.MatchString(name) {
			continue
		}

		if !isPart(name) {
			continue
		}

		parts = append(parts, name)
	}

	return parts
}

func (ls *linuxSystem) isPartition(kname string) bool {
	return pathExists(path.Join(ls.sysClassBlock, kname, "partition"))
}
