// Package partid has the partition type identifiers this module writes.
package partid

// Empty is the zero partition type of an unused GPT entry.
//
//nolint:gochecknoglobals
var Empty = [16]byte{}

// LinuxFS is the GPT type for Linux filesystem data.
// 0FC63DAF-8483-4772-8E79-3D69D8477DE4
//
//nolint:gochecknoglobals
var LinuxFS = [16]byte{
	0xaf, 0x3d, 0xc6, 0x0f, 0x83, 0x84, 0x72, 0x47,
	0x8e, 0x79, 0x3d, 0x69, 0xd8, 0x47, 0x7d, 0xe4}

// LinuxLVM is the GPT type for a Linux LVM physical volume.
// E6D6D379-F507-44C2-A23C-238F2A3DF928
//
//nolint:gochecknoglobals
var LinuxLVM = [16]byte{
	0x79, 0xd3, 0xd6, 0xe6, 0x07, 0xf5, 0xc2, 0x44,
	0xa2, 0x3c, 0x23, 0x8f, 0x2a, 0x3d, 0xf9, 0x28}

const (
	// MBRLinux is the MBR partition type byte for a Linux filesystem.
	MBRLinux = 0x83

	// MBRLinuxLVM is the MBR partition type byte for Linux LVM.
	MBRLinuxLVM = 0x8e
)

// Text is a map of partition types to human readable names.
//
//nolint:gochecknoglobals
var Text = map[[16]byte]string{
	Empty:    "Empty",
	LinuxFS:  "Linux-FS",
	LinuxLVM: "LVM",
}

// ToMBR returns the MBR type byte for a GPT partition type. Only the types
// in this package are known; anything else is reported as not found.
func ToMBR(ptype [16]byte) (byte, bool) {
	switch ptype {
	case LinuxFS:
		return MBRLinux, true
	case LinuxLVM:
		return MBRLinuxLVM, true
	}

	// readMBRTable stores MBR types in the last byte.
	var prefix [15]byte
	if [15]byte(ptype[:15]) == prefix && ptype[15] != 0 {
		return ptype[15], true
	}

	return 0, false
}

// FromMBR returns the partition type for an MBR type byte.
func FromMBR(mtype byte) [16]byte {
	switch mtype {
	case MBRLinux:
		return LinuxFS
	case MBRLinuxLVM:
		return LinuxLVM
	}

	buf := [16]byte{}
	buf[15] = mtype

	return buf
}
