//go:build linux
// +build linux

package linux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func readReportUint64(s string) (uint64, error) {
	// lvm --report-format=json --unit=B puts unit 'B' at end of all sizes.
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return 0, nil
	}

	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert string %s to uint64: %s", s, err)
	}

	return num, nil
}

// readReportUint64s fills dest[key] from m, stopping at the first bad value.
func readReportUint64s(m map[string]string, dest map[string]*uint64) error {
	var err error

	for key, ptr := range dest {
		if *ptr, err = readReportUint64(m[key]); err != nil {
			return fmt.Errorf("%s: %s", key, err)
		}
	}

	return nil
}

type lvmPVData struct {
	Path         string
	Size         uint64
	VGName       string
	UUID         string
	Free         uint64
	MetadataSize uint64
	raw          map[string]string
}

func (d *lvmPVData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	err := json.Unmarshal(b, &m)

	if err != nil {
		return err
	}

	d.raw = m
	d.Path = m["pv_name"]
	d.VGName = m["vg_name"]
	d.UUID = m["pv_uuid"]

	return readReportUint64s(m, map[string]*uint64{
		"pv_size":     &d.Size,
		"pv_mda_size": &d.MetadataSize,
		"pv_free":     &d.Free,
	})
}

func parsePvReport(report []byte) ([]lvmPVData, error) {
	var d map[string]([]map[string]([]lvmPVData))
	err := json.Unmarshal(report, &d)

	if err != nil {
		return []lvmPVData{}, err
	}

	if len(d["report"]) == 0 {
		return []lvmPVData{}, fmt.Errorf("lvm pvs report had no entries")
	}

	return d["report"][0]["pv"], nil
}

func getPvReport(args ...string) ([]lvmPVData, error) {
	cmd := []string{"lvm", "pvs", "--options=pv_all,vg_name", "--report-format=json", "--unit=B"}
	cmd = append(cmd, args...)
	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)

	if rc != 0 {
		return []lvmPVData{},
			fmt.Errorf("failed lvm pvs [%d]: %s\n%s", rc, out, stderr)
	}

	return parsePvReport(out)
}

type lvmVGData struct {
	Name string
	Size uint64
	UUID string
	Free uint64
	raw  map[string]string
}

func (d *lvmVGData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	err := json.Unmarshal(b, &m)

	if err != nil {
		return err
	}

	d.raw = m
	d.Name = m["vg_name"]
	d.UUID = m["vg_uuid"]

	return readReportUint64s(m, map[string]*uint64{
		"vg_size": &d.Size,
		"vg_free": &d.Free,
	})
}

func parseVgReport(report []byte) ([]lvmVGData, error) {
	var d map[string]([]map[string]([]lvmVGData))
	err := json.Unmarshal(report, &d)

	if err != nil {
		return []lvmVGData{}, err
	}

	if len(d["report"]) == 0 {
		return []lvmVGData{}, fmt.Errorf("lvm vgs report had no entries")
	}

	return d["report"][0]["vg"], nil
}

func getVgReport(args ...string) ([]lvmVGData, error) {
	cmd := []string{"lvm", "vgs", "--options=vg_all", "--report-format=json", "--unit=B"}
	cmd = append(cmd, args...)
	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)

	if rc != 0 {
		return []lvmVGData{},
			fmt.Errorf("failed lvm vgs [%d]: %s\n%s", rc, out, stderr)
	}

	return parseVgReport(out)
}
