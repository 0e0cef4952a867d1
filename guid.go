package diskprep

import (
	"encoding/json"

	"github.com/rekby/gpt"
	uuid "github.com/satori/go.uuid"
)

// GUID - a 16 byte Globally Unique ID
type GUID [16]byte

// GenGUID - generate a random uuid and return it
func GenGUID() GUID {
	return GUID(uuid.NewV4())
}

func (g GUID) String() string {
	return GUIDToString(g)
}

// MarshalJSON encodes the GUID as a string.
func (g GUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes a GUID from its string form. An empty string is the
// zero GUID.
func (g *GUID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	if s == "" {
		*g = GUID{}
		return nil
	}

	parsed, err := StringToGUID(s)
	if err != nil {
		return err
	}

	*g = parsed

	return nil
}

// StringToGUID - convert a string to a GUID
func StringToGUID(sguid string) (GUID, error) {
	return gpt.StringToGuid(sguid)
}

// GUIDToString - turn a Guid into a string.
func GUIDToString(bguid GUID) string {
	return gpt.Guid(bguid).String()
}
